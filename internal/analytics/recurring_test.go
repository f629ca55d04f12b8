package analytics

import (
	"testing"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRecurring_MonthlySubscription(t *testing.T) {
	txs := []domain.Transaction{
		newTx("2024-03-01", "-15.99", "Entertainment", "Netflix"),
		newTx("2024-01-01", "-15.99", "Entertainment", "Netflix"),
		newTx("2024-04-01", "-15.99", "Entertainment", "Netflix"),
		newTx("2024-02-01", "-15.99", "Entertainment", "Netflix"),
	}

	got, err := DetectRecurring(txs, DefaultRecurringRules)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Netflix", got[0].Merchant)
	assert.InDelta(t, 15.99, got[0].Amount, 1e-9)
	assert.InDelta(t, 30.0, got[0].IntervalDays, 1.0)
	assert.Equal(t, ConfidenceHigh, got[0].Confidence)
}

func TestDetectRecurring(t *testing.T) {
	tests := []struct {
		name string
		txs  []domain.Transaction
		want []RecurringExpense
	}{
		{
			name: "two close charges grade high",
			txs: []domain.Transaction{
				newTx("2024-01-10", "-9.99", "Music", "Spotify"),
				newTx("2024-02-10", "-10.49", "Music", "Spotify"),
			},
			want: []RecurringExpense{
				{Merchant: "Spotify", Amount: 10.24, IntervalDays: 31, Confidence: ConfidenceHigh},
			},
		},
		{
			name: "uneven gaps grade medium",
			txs: []domain.Transaction{
				newTx("2024-01-01", "-50", "Gym", "PureGym"),
				newTx("2024-01-31", "-50", "Gym", "PureGym"),
				newTx("2024-02-26", "-50", "Gym", "PureGym"),
				newTx("2024-03-31", "-50", "Gym", "PureGym"),
			},
			want: []RecurringExpense{
				{Merchant: "PureGym", Amount: 50, IntervalDays: 30, Confidence: ConfidenceMedium},
			},
		},
		{
			name: "inconsistent amounts",
			txs: []domain.Transaction{
				newTx("2024-01-01", "-10", "Food", "Tesco"),
				newTx("2024-02-01", "-20", "Food", "Tesco"),
			},
			want: []RecurringExpense{},
		},
		{
			name: "irregular intervals",
			txs: []domain.Transaction{
				newTx("2024-01-01", "-5", "Coffee", "Pret"),
				newTx("2024-01-02", "-5", "Coffee", "Pret"),
				newTx("2024-01-30", "-5", "Coffee", "Pret"),
				newTx("2024-01-31", "-5", "Coffee", "Pret"),
			},
			want: []RecurringExpense{},
		},
		{
			name: "single charge",
			txs: []domain.Transaction{
				newTx("2024-01-01", "-99", "Software", "JetBrains"),
			},
			want: []RecurringExpense{},
		},
		{
			name: "income is not a charge",
			txs: []domain.Transaction{
				newTx("2024-01-01", "2000", "Salary", "ACME"),
				newTx("2024-02-01", "2000", "Salary", "ACME"),
			},
			want: []RecurringExpense{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectRecurring(tt.txs, DefaultRecurringRules)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Merchant, got[i].Merchant)
				assert.InDelta(t, tt.want[i].Amount, got[i].Amount, 1e-9)
				assert.InDelta(t, tt.want[i].IntervalDays, got[i].IntervalDays, 1e-9)
				assert.Equal(t, tt.want[i].Confidence, got[i].Confidence)
			}
		})
	}
}

func TestDetectRecurring_MerchantKeys(t *testing.T) {
	nameOnly := func(date, name string) domain.Transaction {
		tx := newTx(date, "-7", "Misc", "")
		tx.Name = name
		return tx
	}

	txs := []domain.Transaction{
		nameOnly("2024-01-05", "ICLOUD STORAGE"),
		newTx("2024-01-06", "-3", "Misc", "Dropbox"),
		nameOnly("2024-01-07", ""),
		nameOnly("2024-02-05", "ICLOUD STORAGE"),
		newTx("2024-02-06", "-3", "Misc", "Dropbox"),
		nameOnly("2024-02-07", ""),
	}

	got, err := DetectRecurring(txs, DefaultRecurringRules)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ICLOUD STORAGE", got[0].Merchant)
	assert.Equal(t, "Dropbox", got[1].Merchant)
}
