package analytics

import (
	"fmt"
	"math"

	"github.com/dvloznov/finance-insights/internal/domain"
)

// ForecastPoint is a projected expense total for a future month.
type ForecastPoint struct {
	Month      string  `json:"month"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// Forecast projects horizon months past the last bucket by compounding the average
// month-over-month growth rate. Fewer than minMonths buckets, or no month with a nonzero
// predecessor, yields no points.
func Forecast(buckets []MonthlyBucket, minMonths, horizon int) ([]ForecastPoint, error) {
	points := []ForecastPoint{}
	if len(buckets) < minMonths || len(buckets) == 0 {
		return points, nil
	}

	var rates []float64
	for i := 1; i < len(buckets); i++ {
		prev := buckets[i-1].Total
		if prev == 0 {
			continue
		}
		rates = append(rates, (buckets[i].Total-prev)/prev)
	}
	if len(rates) == 0 {
		return points, nil
	}

	avgRate, volatility := meanStdDev(rates)
	confidence := clamp01(1 / (1 + volatility))

	last := buckets[len(buckets)-1]
	lastMonth, err := domain.ParseMonth(last.Month)
	if err != nil {
		return []ForecastPoint{}, fmt.Errorf("Forecast: %w", err)
	}

	for i := 1; i <= horizon; i++ {
		amount := last.Total * math.Pow(1+avgRate, float64(i))
		if !finite(amount, confidence) {
			return []ForecastPoint{}, fmt.Errorf("Forecast: month +%d: %w", i, ErrNonFinite)
		}
		points = append(points, ForecastPoint{
			Month:      lastMonth.AddMonths(i).String(),
			Amount:     round2(amount),
			Confidence: confidence,
		})
	}

	return points, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
