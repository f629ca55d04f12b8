package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 2.0, cfg.Analytics.OutlierThreshold)
	assert.Equal(t, OrderInput, cfg.Analytics.OutlierOrder)
	assert.Equal(t, 2, cfg.Analytics.RecurringMinCharges)
	assert.Equal(t, 1.0, cfg.Analytics.RecurringAmountTolerance)
	assert.Equal(t, 5.0, cfg.Analytics.RecurringIntervalTolerance)
	assert.Equal(t, 2.0, cfg.Analytics.RecurringHighConfidence)
	assert.Equal(t, 3, cfg.Analytics.ForecastMinMonths)
	assert.Equal(t, 3, cfg.Analytics.ForecastHorizon)
	assert.Equal(t, "finance", cfg.Source.BigQuery.Dataset)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	configContent := `
[log]
level = "debug"
format = "json"

[analytics]
outlier_threshold = 2.5
outlier_order = "severity"
forecast_horizon = 6

[source]
lookback_days = 365

[source.bigquery]
project = "test-project"

[retry]
max_retries = 5
initial_interval = "1s"
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "insights.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2.5, cfg.Analytics.OutlierThreshold)
	assert.Equal(t, OrderSeverity, cfg.Analytics.OutlierOrder)
	assert.Equal(t, 6, cfg.Analytics.ForecastHorizon)
	// untouched keys keep their defaults
	assert.Equal(t, 1.0, cfg.Analytics.RecurringAmountTolerance)
	assert.Equal(t, 365, cfg.Source.LookbackDays)
	assert.Equal(t, "test-project", cfg.Source.BigQuery.Project)
	assert.Equal(t, "finance", cfg.Source.BigQuery.Dataset)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("INSIGHTS_ANALYTICS_OUTLIER_THRESHOLD", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.Analytics.OutlierThreshold)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero outlier threshold", func(c *Config) { c.Analytics.OutlierThreshold = 0 }},
		{"unknown outlier order", func(c *Config) { c.Analytics.OutlierOrder = "random" }},
		{"single charge recurring", func(c *Config) { c.Analytics.RecurringMinCharges = 1 }},
		{"high confidence above tolerance", func(c *Config) { c.Analytics.RecurringHighConfidence = 6 }},
		{"forecast needs two months", func(c *Config) { c.Analytics.ForecastMinMonths = 1 }},
		{"zero horizon", func(c *Config) { c.Analytics.ForecastHorizon = 0 }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
