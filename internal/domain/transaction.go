package domain

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DefaultCategory is substituted for transactions that carry no category.
const DefaultCategory = "Uncategorized"

// Transaction is one normalized financial transaction handed to the analytics engine.
// Values are treated as immutable once constructed by the ingest boundary or a source.
type Transaction struct {
	ID       string          // from "transaction_id" / "id", may be empty
	Date     civil.Date      // parsed from "date" (YYYY-MM-DD)
	Name     string          // from "name"
	Merchant string          // from "merchant_name", may be empty
	Amount   decimal.Decimal // from "amount" (IN = positive, OUT = negative)
	Category string          // from "category", DefaultCategory when absent
}

// IsExpense reports whether the transaction is an outflow.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IsIncome reports whether the transaction is an inflow.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// Magnitude returns the absolute amount.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// CategoryKey returns the grouping key for category analytics.
func (t Transaction) CategoryKey() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return DefaultCategory
}

// MerchantKey returns the grouping key for recurring-charge detection: the merchant,
// or the transaction name when the merchant is unknown.
func (t Transaction) MerchantKey() string {
	if m := strings.TrimSpace(t.Merchant); m != "" {
		return m
	}
	return strings.TrimSpace(t.Name)
}

// MonthKey returns the "YYYY-MM" bucket the transaction falls into.
func (t Transaction) MonthKey() string {
	return MonthOf(t.Date).String()
}

// transactionJSON is the wire shape used when a transaction is embedded in a report.
type transactionJSON struct {
	ID           string      `json:"transaction_id,omitempty"`
	Date         civil.Date  `json:"date"`
	Name         string      `json:"name"`
	MerchantName string      `json:"merchant_name,omitempty"`
	Amount       json.Number `json:"amount"`
	Category     string      `json:"category"`
}

// MarshalJSON emits the amount as a JSON number rather than decimal's quoted string.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:           t.ID,
		Date:         t.Date,
		Name:         t.Name,
		MerchantName: t.Merchant,
		Amount:       json.Number(t.Amount.String()),
		Category:     t.CategoryKey(),
	})
}
