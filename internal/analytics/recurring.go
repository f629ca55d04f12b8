package analytics

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-insights/internal/domain"
)

// Confidence grades a recurring-expense classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// RecurringRules are the consistency thresholds for recurring detection.
type RecurringRules struct {
	MinCharges        int     // charges needed before a merchant is considered
	AmountTolerance   float64 // amount std-dev below this is "consistent"
	IntervalTolerance float64 // gap std-dev (days) below this is "regular"
	HighConfidence    float64 // gap std-dev (days) below this grades "high"
}

// DefaultRecurringRules mirrors the production thresholds.
var DefaultRecurringRules = RecurringRules{
	MinCharges:        2,
	AmountTolerance:   1.0,
	IntervalTolerance: 5.0,
	HighConfidence:    2.0,
}

// RecurringExpense is a merchant charged consistently in amount and timing.
type RecurringExpense struct {
	Merchant     string     `json:"merchant"`
	Amount       float64    `json:"amount"`
	IntervalDays float64    `json:"interval_days"`
	Confidence   Confidence `json:"confidence"`
}

type charge struct {
	amount float64
	date   civil.Date
}

// DetectRecurring classifies merchants whose charges are consistent in both amount and interval.
// Merchants failing either test produce no record. Results follow merchant first-appearance order.
//
// Two charges always give a single gap with zero deviation, so any consistent pair grades "high".
func DetectRecurring(txs []domain.Transaction, rules RecurringRules) ([]RecurringExpense, error) {
	byMerchant := make(map[string][]charge)
	var merchants []string

	for _, tx := range expenses(txs) {
		key := tx.MerchantKey()
		if key == "" {
			continue
		}
		if _, seen := byMerchant[key]; !seen {
			merchants = append(merchants, key)
		}
		byMerchant[key] = append(byMerchant[key], charge{
			amount: tx.Magnitude().InexactFloat64(),
			date:   tx.Date,
		})
	}

	recurring := []RecurringExpense{}
	for _, merchant := range merchants {
		charges := byMerchant[merchant]
		if len(charges) < rules.MinCharges {
			continue
		}

		amounts := make([]float64, len(charges))
		for i, c := range charges {
			amounts[i] = c.amount
		}
		meanAmount, amountStd := meanStdDev(amounts)
		if !finite(meanAmount, amountStd) {
			return []RecurringExpense{}, fmt.Errorf("DetectRecurring: merchant %q: %w", merchant, ErrNonFinite)
		}
		if amountStd >= rules.AmountTolerance {
			continue
		}

		sort.SliceStable(charges, func(i, j int) bool {
			return charges[i].date.Before(charges[j].date)
		})
		gaps := make([]float64, 0, len(charges)-1)
		for i := 1; i < len(charges); i++ {
			gaps = append(gaps, float64(charges[i].date.DaysSince(charges[i-1].date)))
		}
		meanGap, gapStd := meanStdDev(gaps)
		if gapStd >= rules.IntervalTolerance {
			continue
		}

		confidence := ConfidenceMedium
		if gapStd < rules.HighConfidence {
			confidence = ConfidenceHigh
		}

		recurring = append(recurring, RecurringExpense{
			Merchant:     merchant,
			Amount:       meanAmount,
			IntervalDays: meanGap,
			Confidence:   confidence,
		})
	}

	return recurring, nil
}
