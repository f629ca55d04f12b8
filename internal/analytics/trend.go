package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthlyBucket is the expense total of one calendar month.
type MonthlyBucket struct {
	Month      string             `json:"month"` // YYYY-MM
	Total      float64            `json:"total"`
	ByCategory map[string]float64 `json:"by_category"`
}

// MonthlyBuckets totals expense magnitudes per month, sorted chronologically.
func MonthlyBuckets(txs []domain.Transaction) ([]MonthlyBucket, error) {
	totals := make(map[string]decimal.Decimal)
	byCategory := make(map[string]map[string]decimal.Decimal)

	for _, tx := range expenses(txs) {
		key := tx.MonthKey()
		totals[key] = totals[key].Add(tx.Magnitude())
		if byCategory[key] == nil {
			byCategory[key] = make(map[string]decimal.Decimal)
		}
		cat := tx.CategoryKey()
		byCategory[key][cat] = byCategory[key][cat].Add(tx.Magnitude())
	}

	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	// zero-padded YYYY-MM keys sort chronologically
	sort.Strings(months)

	buckets := make([]MonthlyBucket, 0, len(months))
	for _, m := range months {
		b := MonthlyBucket{
			Month:      m,
			Total:      totals[m].InexactFloat64(),
			ByCategory: make(map[string]float64, len(byCategory[m])),
		}
		for cat, v := range byCategory[m] {
			b.ByCategory[cat] = v.InexactFloat64()
		}
		if !finite(b.Total) {
			return nil, fmt.Errorf("MonthlyBuckets: month %s: %w", m, ErrNonFinite)
		}
		buckets = append(buckets, b)
	}

	return buckets, nil
}

// TrendPoint is the change of one month against the month before it.
type TrendPoint struct {
	Month            string  `json:"-"`
	ChangePercentage float64 `json:"change_percentage"`
	CurrentSpending  float64 `json:"current_spending"`
	PreviousSpending float64 `json:"previous_spending"`
}

// Trends is an ordered month -> TrendPoint mapping. It encodes as a JSON object whose keys
// appear in chronological order.
type Trends []TrendPoint

// Get returns the trend point for a YYYY-MM month.
func (t Trends) Get(month string) (TrendPoint, bool) {
	for _, p := range t {
		if p.Month == month {
			return p, true
		}
	}
	return TrendPoint{}, false
}

// MarshalJSON implements json.Marshaler.
func (t Trends) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Month)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Keys are re-sorted chronologically.
func (t *Trends) UnmarshalJSON(data []byte) error {
	var raw map[string]TrendPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Trends, 0, len(raw))
	for month, p := range raw {
		p.Month = month
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	*t = out
	return nil
}

// CalculateTrends computes month-over-month change for every month after the first.
// Fewer than two months yields no points.
func CalculateTrends(buckets []MonthlyBucket) (Trends, error) {
	trends := Trends{}
	if len(buckets) < 2 {
		return trends, nil
	}

	for i := 1; i < len(buckets); i++ {
		current := buckets[i].Total
		previous := buckets[i-1].Total

		var change float64
		if previous != 0 {
			change = (current - previous) / previous * 100
		}
		if !finite(change) {
			return Trends{}, fmt.Errorf("CalculateTrends: month %s: %w", buckets[i].Month, ErrNonFinite)
		}

		trends = append(trends, TrendPoint{
			Month:            buckets[i].Month,
			ChangePercentage: round2(change),
			CurrentSpending:  round2(current),
			PreviousSpending: round2(previous),
		})
	}

	return trends, nil
}
