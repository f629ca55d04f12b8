package analytics

import (
	"fmt"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// CategorySummary is the spend profile of one category.
type CategorySummary struct {
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`

	total decimal.Decimal
	max   decimal.Decimal
	min   decimal.Decimal
}

// ExactTotal returns the category total without float rounding.
func (s CategorySummary) ExactTotal() decimal.Decimal {
	return s.total
}

func (s *CategorySummary) add(magnitude decimal.Decimal) {
	// count == 0 is the "no minimum yet" state
	if s.Count == 0 || magnitude.LessThan(s.min) {
		s.min = magnitude
	}
	if s.Count == 0 || magnitude.GreaterThan(s.max) {
		s.max = magnitude
	}
	s.total = s.total.Add(magnitude)
	s.Count++
}

func (s *CategorySummary) finish() error {
	s.Total = s.total.InexactFloat64()
	s.Max = s.max.InexactFloat64()
	s.Min = s.min.InexactFloat64()
	s.Average = s.total.Div(decimal.NewFromInt(int64(s.Count))).InexactFloat64()
	if !finite(s.Total, s.Max, s.Min, s.Average) {
		return ErrNonFinite
	}
	return nil
}

// categoryGroup holds the expenses of one category in input order.
type categoryGroup struct {
	name string
	txs  []domain.Transaction
}

// groupByCategory groups expense transactions by category key. Groups are returned in the
// order their category first appears.
func groupByCategory(txs []domain.Transaction) []*categoryGroup {
	index := make(map[string]*categoryGroup)
	var groups []*categoryGroup

	for _, tx := range expenses(txs) {
		key := tx.CategoryKey()
		g, ok := index[key]
		if !ok {
			g = &categoryGroup{name: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.txs = append(g.txs, tx)
	}

	return groups
}

// Aggregate computes per-category spend summaries over expense transactions.
// Income is excluded; an empty batch yields an empty map.
func Aggregate(txs []domain.Transaction) (map[string]CategorySummary, error) {
	result := make(map[string]CategorySummary)

	for _, g := range groupByCategory(txs) {
		var s CategorySummary
		for _, tx := range g.txs {
			s.add(tx.Magnitude())
		}
		if err := s.finish(); err != nil {
			return map[string]CategorySummary{}, fmt.Errorf("Aggregate: category %q: %w", g.name, err)
		}
		result[g.name] = s
	}

	return result, nil
}

// TotalSpending sums the exact totals of the given summaries.
func TotalSpending(summaries map[string]CategorySummary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range summaries {
		total = total.Add(s.total)
	}
	return total
}

// CategoryStatistics extends a summary with the population standard deviation of amounts.
type CategoryStatistics struct {
	CategorySummary
	StdDev float64 `json:"std_dev"`
}

// CategoryStats profiles a single category. ok is false when the category has no expenses.
func CategoryStats(txs []domain.Transaction, category string) (CategoryStatistics, bool) {
	for _, g := range groupByCategory(txs) {
		if g.name != category {
			continue
		}
		var stats CategoryStatistics
		amounts := make([]float64, 0, len(g.txs))
		for _, tx := range g.txs {
			stats.add(tx.Magnitude())
			amounts = append(amounts, tx.Magnitude().InexactFloat64())
		}
		if err := stats.finish(); err != nil {
			return CategoryStatistics{}, false
		}
		_, stats.StdDev = meanStdDev(amounts)
		return stats, true
	}
	return CategoryStatistics{}, false
}
