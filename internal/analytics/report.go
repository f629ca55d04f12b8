package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Report section names. They double as keys of Report.Errors.
const (
	SectionSpendingData        = "spending_data"
	SectionTrends              = "trends"
	SectionUnusualTransactions = "unusual_transactions"
	SectionRecurringExpenses   = "recurring_expenses"
	SectionPredictions         = "predictions"
)

// Report is the assembled analytics result for one batch.
// Every collection is non-nil so empty sections encode as [] or {}.
type Report struct {
	SpendingData        map[string]CategorySummary `json:"spending_data"`
	Trends              Trends                     `json:"trends"`
	UnusualTransactions []UnusualTransaction       `json:"unusual_transactions"`
	RecurringExpenses   []RecurringExpense         `json:"recurring_expenses"`
	TotalSpending       float64                    `json:"total_spending"`
	Predictions         []ForecastPoint            `json:"predictions"`
	Timestamp           time.Time                  `json:"timestamp"`

	// Errors maps a failed section to its message. Absent when every section succeeded.
	Errors map[string]string `json:"errors,omitempty"`

	// Failures holds the typed error of each failed section in section order.
	Failures []*SectionError `json:"-"`

	totalSpending decimal.Decimal
}

// ExactTotalSpending returns total_spending without float rounding.
func (r *Report) ExactTotalSpending() decimal.Decimal {
	return r.totalSpending
}

// Failed reports whether the named section was zeroed after a failure.
func (r *Report) Failed(section string) bool {
	_, ok := r.Errors[section]
	return ok
}

func emptyReport(ts time.Time) *Report {
	return &Report{
		SpendingData:        map[string]CategorySummary{},
		Trends:              Trends{},
		UnusualTransactions: []UnusualTransaction{},
		RecurringExpenses:   []RecurringExpense{},
		Predictions:         []ForecastPoint{},
		Timestamp:           ts,
		totalSpending:       decimal.Zero,
	}
}

func (r *Report) recordFailure(section string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[section] = err.Error()
	r.Failures = append(r.Failures, &SectionError{Section: section, Err: err})
}

// SectionError is the failure of a single report section.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("section %s: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}
