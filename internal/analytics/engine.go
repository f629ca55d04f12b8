package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/logger"
	"golang.org/x/sync/errgroup"
)

// ErrBucketsUnavailable marks predictions skipped because monthly bucketing failed.
var ErrBucketsUnavailable = errors.New("monthly buckets unavailable")

// Engine assembles analytics reports. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	cfg config.AnalyticsConfig
	now func() time.Time

	// beforeSection runs at the start of each section. Tests use it to inject failures.
	beforeSection func(section string)
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg config.AnalyticsConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) recurringRules() RecurringRules {
	return RecurringRules{
		MinCharges:        e.cfg.RecurringMinCharges,
		AmountTolerance:   e.cfg.RecurringAmountTolerance,
		IntervalTolerance: e.cfg.RecurringIntervalTolerance,
		HighConfidence:    e.cfg.RecurringHighConfidence,
	}
}

// Analyze builds the report for txs. It never returns nil: a section that fails is left
// empty and recorded in Report.Errors while the other sections complete.
func (e *Engine) Analyze(ctx context.Context, txs []domain.Transaction) *Report {
	log := logger.ForComponent(logger.FromContext(ctx), "analytics")
	ctx = logger.WithContext(ctx, log)

	report := emptyReport(e.now().UTC())

	var (
		spending  map[string]CategorySummary
		buckets   []MonthlyBucket
		trends    Trends
		unusual   []UnusualTransaction
		recurring []RecurringExpense

		spendingErr, trendsErr, unusualErr, recurringErr error
	)

	// Each section owns its result and error variables. A plain Group has no context to
	// cancel, so one failing section never stops the others; Wait only joins, and its first
	// error is already recorded per section below.
	var g errgroup.Group
	g.Go(func() error {
		spendingErr = e.runSection(ctx, SectionSpendingData, func() (err error) {
			spending, err = Aggregate(txs)
			return err
		})
		return spendingErr
	})
	g.Go(func() error {
		trendsErr = e.runSection(ctx, SectionTrends, func() (err error) {
			if buckets, err = MonthlyBuckets(txs); err != nil {
				return err
			}
			trends, err = CalculateTrends(buckets)
			return err
		})
		return trendsErr
	})
	g.Go(func() error {
		unusualErr = e.runSection(ctx, SectionUnusualTransactions, func() (err error) {
			unusual, err = DetectOutliers(txs, e.cfg.OutlierThreshold, OutlierOrder(e.cfg.OutlierOrder))
			return err
		})
		return unusualErr
	})
	g.Go(func() error {
		recurringErr = e.runSection(ctx, SectionRecurringExpenses, func() (err error) {
			recurring, err = DetectRecurring(txs, e.recurringRules())
			return err
		})
		return recurringErr
	})
	_ = g.Wait()

	if spendingErr != nil {
		report.recordFailure(SectionSpendingData, spendingErr)
	} else {
		report.SpendingData = spending
		report.totalSpending = TotalSpending(spending)
		report.TotalSpending = report.totalSpending.InexactFloat64()
	}

	if trendsErr != nil {
		report.recordFailure(SectionTrends, trendsErr)
	} else {
		report.Trends = trends
	}

	if unusualErr != nil {
		report.recordFailure(SectionUnusualTransactions, unusualErr)
	} else {
		report.UnusualTransactions = unusual
	}

	if recurringErr != nil {
		report.recordFailure(SectionRecurringExpenses, recurringErr)
	} else {
		report.RecurringExpenses = recurring
	}

	var predictions []ForecastPoint
	var predictionsErr error
	if trendsErr != nil && buckets == nil {
		predictionsErr = fmt.Errorf("%w: %v", ErrBucketsUnavailable, trendsErr)
	} else {
		predictionsErr = e.runSection(ctx, SectionPredictions, func() (err error) {
			predictions, err = Forecast(buckets, e.cfg.ForecastMinMonths, e.cfg.ForecastHorizon)
			return err
		})
	}
	if predictionsErr != nil {
		report.recordFailure(SectionPredictions, predictionsErr)
	} else {
		report.Predictions = predictions
	}

	log.Info().
		Int("transactions", len(txs)).
		Int("categories", len(report.SpendingData)).
		Int("unusual", len(report.UnusualTransactions)).
		Int("recurring", len(report.RecurringExpenses)).
		Int("failed_sections", len(report.Failures)).
		Msg("Analytics report assembled")

	return report
}

// runSection executes fn, converting a panic or a cancelled context into an error.
func (e *Engine) runSection(ctx context.Context, section string, fn func() error) (err error) {
	log := logger.FromContext(ctx).With().Str("section", section).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.Error().Err(err).Msg("Section failed")
			return
		}
		log.Debug().Dur("duration", time.Since(start)).Msg("Section complete")
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if e.beforeSection != nil {
		e.beforeSection(section)
	}
	return fn()
}
