package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-insights/internal/analytics"
	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	configPath string
	input      string
	gcsURI     string
	bigQuery   bool
	start      string
	end        string
	pretty     bool
	summary    bool
	timeout    time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build an analytics report and print it as JSON",
		Example: `  insights analyze --input transactions.json --pretty
  insights analyze --gcs-uri gs://exports/2024/transactions.json
  insights analyze --bigquery --start 2024-01-01 --end 2024-03-31 --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	f.StringVar(&opts.input, "input", "", "read transactions from a local JSON file")
	f.StringVar(&opts.gcsURI, "gcs-uri", "", "read transactions from a JSON object (gs://bucket/object)")
	f.BoolVar(&opts.bigQuery, "bigquery", false, "read transactions from the BigQuery transactions table")
	f.StringVar(&opts.start, "start", "", "first date (YYYY-MM-DD) for --bigquery; defaults to end minus source.lookback_days")
	f.StringVar(&opts.end, "end", "", "last date (YYYY-MM-DD) for --bigquery; defaults to today")
	f.BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	f.BoolVar(&opts.summary, "summary", false, "also print the income/expense cash-flow summary")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline for fetching and analysis")
	cmd.MarkFlagsMutuallyExclusive("input", "gcs-uri", "bigquery")
	cmd.MarkFlagsOneRequired("input", "gcs-uri", "bigquery")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: logger.Format(cfg.Log.Format),
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	log = log.With().Str("run_id", uuid.NewString()).Logger()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, closeSrc, err := openSource(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer closeSrc()

	batch, err := source.NewRetrying(src, cfg.Retry).Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Fetching transactions failed")
		return fmt.Errorf("fetch transactions: %w", err)
	}
	log.Info().
		Int("transactions", len(batch.Transactions)).
		Int("rejected", len(batch.Rejected)).
		Msg("Fetched transaction batch")

	engine, err := analytics.NewEngine(cfg.Analytics)
	if err != nil {
		return err
	}
	report := engine.Analyze(ctx, batch.Transactions)
	logFailures(log, report)

	var out interface{} = report
	if opts.summary {
		out = struct {
			Report  *analytics.Report  `json:"report"`
			Summary analytics.CashFlow `json:"summary"`
		}{report, analytics.Summarize(batch.Transactions)}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// openSource builds the source selected by flags. The returned func releases any client.
func openSource(ctx context.Context, cfg *config.Config, opts *analyzeOptions) (source.Source, func(), error) {
	noop := func() {}

	switch {
	case opts.input != "":
		return source.JSONFile{Path: opts.input}, noop, nil

	case opts.gcsURI != "":
		if _, _, err := source.ParseGCSURI(opts.gcsURI); err != nil {
			return nil, noop, err
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("openSource: storage client: %w", err)
		}
		src, err := source.NewGCSObject(source.NewStorageReader(client), opts.gcsURI)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return src, func() { client.Close() }, nil

	case opts.bigQuery:
		project := cfg.Source.BigQuery.Project
		if project == "" {
			return nil, noop, errors.New("openSource: source.bigquery.project is not set")
		}
		start, end, err := dateRange(opts.start, opts.end, cfg.Source.LookbackDays, civil.DateOf(time.Now()))
		if err != nil {
			return nil, noop, err
		}
		client, err := bigquery.NewClient(ctx, project)
		if err != nil {
			return nil, noop, fmt.Errorf("openSource: bigquery client: %w", err)
		}
		src, err := source.NewBigQuery(client, cfg.Source.BigQuery.Dataset, start, end)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return src, func() { client.Close() }, nil
	}

	return nil, noop, errors.New("openSource: one of --input, --gcs-uri or --bigquery is required")
}

// dateRange resolves --start/--end, defaulting end to today and start to end minus lookbackDays.
func dateRange(startFlag, endFlag string, lookbackDays int, today civil.Date) (civil.Date, civil.Date, error) {
	end := today
	if endFlag != "" {
		d, err := civil.ParseDate(endFlag)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = d
	}

	start := end.AddDays(-lookbackDays)
	if startFlag != "" {
		d, err := civil.ParseDate(startFlag)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = d
	}

	if end.Before(start) {
		return civil.Date{}, civil.Date{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return start, end, nil
}

func logFailures(log zerolog.Logger, report *analytics.Report) {
	for _, f := range report.Failures {
		log.Warn().Str("section", f.Section).Err(f.Err).Msg("Report section is empty after failure")
	}
}
