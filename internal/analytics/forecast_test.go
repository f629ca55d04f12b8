package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast_CompoundGrowth(t *testing.T) {
	buckets := []MonthlyBucket{
		{Month: "2023-11", Total: 100},
		{Month: "2023-12", Total: 110},
		{Month: "2024-01", Total: 121},
	}

	got, err := Forecast(buckets, 3, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "2024-02", got[0].Month)
	assert.Equal(t, "2024-03", got[1].Month)
	assert.Equal(t, "2024-04", got[2].Month)

	assert.InDelta(t, 133.1, got[0].Amount, 0.01)
	assert.InDelta(t, 146.41, got[1].Amount, 0.01)
	assert.InDelta(t, 161.05, got[2].Amount, 0.01)

	for _, p := range got {
		assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	}
}

func TestForecast_YearRollover(t *testing.T) {
	got, err := Forecast([]MonthlyBucket{
		{Month: "2024-09", Total: 50},
		{Month: "2024-10", Total: 50},
		{Month: "2024-11", Total: 50},
	}, 3, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2024-12", "2025-01", "2025-02"},
		[]string{got[0].Month, got[1].Month, got[2].Month})
	assert.Equal(t, 50.0, got[2].Amount)
}

func TestForecast_VolatilityLowersConfidence(t *testing.T) {
	got, err := Forecast([]MonthlyBucket{
		{Month: "2024-01", Total: 100},
		{Month: "2024-02", Total: 200},
		{Month: "2024-03", Total: 100},
	}, 3, 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// rates 1.0 and -0.5: std 0.75
	assert.InDelta(t, 1/1.75, got[0].Confidence, 1e-9)
	assert.Greater(t, got[0].Confidence, 0.0)
	assert.Less(t, got[0].Confidence, 1.0)
}

func TestForecast_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name    string
		buckets []MonthlyBucket
	}{
		{"no months", nil},
		{"two months", []MonthlyBucket{{Month: "2024-01", Total: 1}, {Month: "2024-02", Total: 2}}},
		{"no nonzero predecessor", []MonthlyBucket{
			{Month: "2024-01", Total: 0},
			{Month: "2024-02", Total: 0},
			{Month: "2024-03", Total: 10},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Forecast(tt.buckets, 3, 3)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}
