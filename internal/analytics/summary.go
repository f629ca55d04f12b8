package analytics

import (
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// CashFlow is the income/expense balance of a batch.
type CashFlow struct {
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	NetBalance    float64 `json:"net_balance"`
}

// Summarize totals inflows and outflows. Expenses are reported as a positive magnitude.
func Summarize(txs []domain.Transaction) CashFlow {
	income := decimal.Zero
	outflow := decimal.Zero

	for _, tx := range txs {
		switch {
		case tx.IsIncome():
			income = income.Add(tx.Amount)
		case tx.IsExpense():
			outflow = outflow.Add(tx.Magnitude())
		}
	}

	return CashFlow{
		TotalIncome:   income.Round(2).InexactFloat64(),
		TotalExpenses: outflow.Round(2).InexactFloat64(),
		NetBalance:    income.Sub(outflow).Round(2).InexactFloat64(),
	}
}
