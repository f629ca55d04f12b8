package analytics

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// newTx builds a transaction for tests. merchant doubles as the name.
func newTx(date, amount, category, merchant string) domain.Transaction {
	d, err := civil.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return domain.Transaction{
		Date:     d,
		Name:     merchant,
		Merchant: merchant,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
	}
}

// repeatTx returns n identical expenses dated the same day.
func repeatTx(n int, date, amount, category string) []domain.Transaction {
	out := make([]domain.Transaction, n)
	for i := range out {
		out[i] = newTx(date, amount, category, "")
	}
	return out
}
