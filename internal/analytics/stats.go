package analytics

import (
	"errors"
	"math"

	"github.com/dvloznov/finance-insights/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// ErrNonFinite is returned when a computation overflows to Inf or NaN.
var ErrNonFinite = errors.New("non-finite result")

// meanStdDev returns the mean and population standard deviation (divide by N).
// An empty slice yields zeros.
func meanStdDev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	// rounding can leave a tiny negative variance for identical values
	return mean, math.Sqrt(math.Max(variance, 0))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// expenses keeps outflows only, preserving input order.
func expenses(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsExpense() {
			out = append(out, tx)
		}
	}
	return out
}
