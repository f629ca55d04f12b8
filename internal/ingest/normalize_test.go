package ingest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	raw := []map[string]interface{}{
		{
			"transaction_id": "plaid-1",
			"date":           "2024-01-05",
			"name":           "NETFLIX.COM",
			"merchant_name":  "Netflix",
			"amount":         -15.99,
			"category":       "Entertainment:Streaming",
		},
		{
			"id":       float64(42),
			"date":     "2024-01-06T13:45:00Z",
			"name":     "Salary",
			"amount":   "2500.00",
			"category": nil,
		},
	}

	batch := Normalize(context.Background(), raw)
	require.Empty(t, batch.Rejected)
	require.Len(t, batch.Transactions, 2)

	first := batch.Transactions[0]
	assert.Equal(t, "plaid-1", first.ID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 5}, first.Date)
	assert.Equal(t, "Netflix", first.Merchant)
	assert.Equal(t, "Entertainment:Streaming", first.Category)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-15.99")))
	assert.True(t, first.IsExpense())

	second := batch.Transactions[1]
	assert.Equal(t, "42", second.ID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 6}, second.Date)
	assert.Equal(t, domain.DefaultCategory, second.Category)
	assert.Equal(t, "Salary", second.MerchantKey())
	assert.True(t, second.IsIncome())
}

func TestNormalize_SkipsMalformedRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	raw := []map[string]interface{}{
		{"date": "2024-01-05", "name": "ok", "amount": -1.0},
		{"date": "05/01/2024", "name": "bad date", "amount": -1.0},
		{"date": "2024-01-05", "name": "bad amount", "amount": "ten pounds"},
		{"date": "2024-01-05", "name": "no amount"},
		{"date": "2024-01-05", "name": "wrong type", "amount": true},
		{"name": "no date", "amount": -3.0},
	}

	batch := Normalize(ctx, raw)

	require.Len(t, batch.Transactions, 1)
	assert.Equal(t, "ok", batch.Transactions[0].Name)

	require.Len(t, batch.Rejected, 5)
	indexes := make([]int, 0, len(batch.Rejected))
	for _, r := range batch.Rejected {
		indexes = append(indexes, r.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, indexes)
	assert.Contains(t, batch.Rejected[0].Error(), "record 1")
	assert.Contains(t, buf.String(), "Skipping malformed transaction")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"array", `[{"amount": -1}, {"amount": 2}]`, 2, false},
		{"wrapped", `{"transactions": [{"amount": -1}]}`, 1, false},
		{"empty", ``, 0, false},
		{"missing key", `{"items": []}`, 0, true},
		{"scalar element", `[1, 2]`, 0, true},
		{"invalid json", `[{`, 0, true},
		{"trailing value", `[] []`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestDecodeJSON_OutOfRangeAmountRejectsOnlyThatRecord(t *testing.T) {
	payload := `[
		{"transaction_id": 1001, "date": "2024-01-05", "name": "TESCO", "amount": -42.10},
		{"transaction_id": 1002, "date": "2024-01-06", "name": "OVERFLOW", "amount": -1e400},
		{"transaction_id": 1003, "date": "2024-01-07", "name": "WIRE", "amount": -12345678901234567.89}
	]`

	records, err := DecodeJSON([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 3)

	batch := Normalize(context.Background(), records)
	require.Len(t, batch.Transactions, 2)
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, 1, batch.Rejected[0].Index)
	assert.Contains(t, batch.Rejected[0].Error(), "out of range")

	assert.Equal(t, "1001", batch.Transactions[0].ID)
	assert.Equal(t, "-42.1", batch.Transactions[0].Amount.String())
	assert.Equal(t, "1003", batch.Transactions[1].ID)
	assert.Equal(t, "-12345678901234567.89", batch.Transactions[1].Amount.String())
}
