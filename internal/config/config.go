package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override, e.g. INSIGHTS_ANALYTICS_OUTLIER_THRESHOLD.
const EnvPrefix = "INSIGHTS"

// Outlier ordering modes.
const (
	OrderInput    = "input"
	OrderSeverity = "severity"
)

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Source    SourceConfig    `mapstructure:"source"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// AnalyticsConfig holds the engine's tunable thresholds.
type AnalyticsConfig struct {
	OutlierThreshold float64 `mapstructure:"outlier_threshold"`
	OutlierOrder     string  `mapstructure:"outlier_order"` // "input" or "severity"

	RecurringMinCharges        int     `mapstructure:"recurring_min_charges"`
	RecurringAmountTolerance   float64 `mapstructure:"recurring_amount_tolerance"`
	RecurringIntervalTolerance float64 `mapstructure:"recurring_interval_tolerance"`
	RecurringHighConfidence    float64 `mapstructure:"recurring_high_confidence"`

	ForecastMinMonths int `mapstructure:"forecast_min_months"`
	ForecastHorizon   int `mapstructure:"forecast_horizon"`
}

// SourceConfig configures where transaction batches are fetched from.
type SourceConfig struct {
	LookbackDays int            `mapstructure:"lookback_days"`
	BigQuery     BigQueryConfig `mapstructure:"bigquery"`
}

// BigQueryConfig names the project and dataset holding the transactions table.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

// RetryConfig bounds retries around source fetches.
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("analytics.outlier_threshold", 2.0)
	v.SetDefault("analytics.outlier_order", OrderInput)
	v.SetDefault("analytics.recurring_min_charges", 2)
	v.SetDefault("analytics.recurring_amount_tolerance", 1.0)
	v.SetDefault("analytics.recurring_interval_tolerance", 5.0)
	v.SetDefault("analytics.recurring_high_confidence", 2.0)
	v.SetDefault("analytics.forecast_min_months", 3)
	v.SetDefault("analytics.forecast_horizon", 3)

	v.SetDefault("source.lookback_days", 90)
	v.SetDefault("source.bigquery.project", "")
	v.SetDefault("source.bigquery.dataset", "finance")

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("retry.max_elapsed", 30*time.Second)
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config.Default: %v", err))
	}
	return &cfg
}

// Load loads configuration from an optional TOML file and INSIGHTS_* environment variables
// layered over the defaults. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects thresholds and modes the engine cannot honour.
func (c *Config) Validate() error {
	problems := c.Analytics.problems()

	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be \"console\" or \"json\"", c.Log.Format))
	}

	if c.Source.LookbackDays <= 0 {
		problems = append(problems, "source.lookback_days must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must be >= 0")
	}

	return joinProblems(problems)
}

// Validate checks the analytics section on its own.
func (a AnalyticsConfig) Validate() error {
	return joinProblems(a.problems())
}

func (a AnalyticsConfig) problems() []string {
	var problems []string

	if a.OutlierThreshold <= 0 {
		problems = append(problems, "analytics.outlier_threshold must be > 0")
	}
	if a.OutlierOrder != OrderInput && a.OutlierOrder != OrderSeverity {
		problems = append(problems, fmt.Sprintf("analytics.outlier_order %q must be %q or %q", a.OutlierOrder, OrderInput, OrderSeverity))
	}
	if a.RecurringMinCharges < 2 {
		problems = append(problems, "analytics.recurring_min_charges must be >= 2")
	}
	if a.RecurringAmountTolerance <= 0 {
		problems = append(problems, "analytics.recurring_amount_tolerance must be > 0")
	}
	if a.RecurringIntervalTolerance <= 0 {
		problems = append(problems, "analytics.recurring_interval_tolerance must be > 0")
	}
	if a.RecurringHighConfidence <= 0 || a.RecurringHighConfidence > a.RecurringIntervalTolerance {
		problems = append(problems, "analytics.recurring_high_confidence must be in (0, recurring_interval_tolerance]")
	}
	if a.ForecastMinMonths < 2 {
		problems = append(problems, "analytics.forecast_min_months must be >= 2")
	}
	if a.ForecastHorizon < 1 {
		problems = append(problems, "analytics.forecast_horizon must be >= 1")
	}

	return problems
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
