package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// DefaultOutlierThreshold is the |z| above which a transaction is unusual.
const DefaultOutlierThreshold = 2.0

// OutlierOrder controls the order of detected outliers.
type OutlierOrder string

const (
	// OrderByInput keeps the order transactions appeared in the batch.
	OrderByInput OutlierOrder = "input"
	// OrderBySeverity sorts by descending |z|; ties keep batch order.
	OrderBySeverity OutlierOrder = "severity"
)

// UnusualTransaction is an expense whose amount deviates strongly from its category.
type UnusualTransaction struct {
	Transaction        domain.Transaction `json:"transaction"`
	ZScore             float64            `json:"z_score"`
	AverageForCategory float64            `json:"average_for_category"`
}

type categoryMoments struct {
	mean float64
	std  float64
}

// DetectOutliers flags expenses whose z-score within their category exceeds threshold.
// A category with a single observation has zero deviation and never yields an outlier.
func DetectOutliers(txs []domain.Transaction, threshold float64, order OutlierOrder) ([]UnusualTransaction, error) {
	moments := make(map[string]categoryMoments)
	for _, g := range groupByCategory(txs) {
		amounts := make([]float64, len(g.txs))
		for i, tx := range g.txs {
			amounts[i] = tx.Magnitude().InexactFloat64()
		}
		m, s := meanStdDev(amounts)
		if !finite(m, s) {
			return []UnusualTransaction{}, fmt.Errorf("DetectOutliers: category %q: %w", g.name, ErrNonFinite)
		}
		moments[g.name] = categoryMoments{mean: m, std: s}
	}

	unusual := []UnusualTransaction{}
	for _, tx := range expenses(txs) {
		cm := moments[tx.CategoryKey()]

		var z float64
		if cm.std > 0 {
			z = (tx.Magnitude().InexactFloat64() - cm.mean) / cm.std
		}

		if math.Abs(z) > threshold {
			unusual = append(unusual, UnusualTransaction{
				Transaction:        tx,
				ZScore:             z,
				AverageForCategory: cm.mean,
			})
		}
	}

	if order == OrderBySeverity {
		sort.SliceStable(unusual, func(i, j int) bool {
			return math.Abs(unusual[i].ZScore) > math.Abs(unusual[j].ZScore)
		})
	}

	return unusual, nil
}
