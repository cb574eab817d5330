package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/llmburst/llmburst/internal/config"
	"github.com/llmburst/llmburst/internal/executor"
	"github.com/llmburst/llmburst/internal/history"
	"github.com/llmburst/llmburst/internal/httpclient"
	"github.com/llmburst/llmburst/internal/metrics"
	"github.com/llmburst/llmburst/internal/output"
	"github.com/llmburst/llmburst/internal/prompt"
	"github.com/llmburst/llmburst/internal/report"
	"github.com/llmburst/llmburst/internal/results"
	"github.com/llmburst/llmburst/internal/runner"
	"github.com/llmburst/llmburst/internal/threshold"
	"github.com/llmburst/llmburst/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DumpConfig {
		dump, err := config.DumpYAML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, dump)
		return nil
	}
	if cfg.ListRuns != 0 {
		return listRuns(cfg.ListRuns)
	}

	thresholds, err := threshold.Parse(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	client := httpclient.NewClient(cfg.Concurrency, cfg.InsecureSkipVerify)
	store := results.NewStore()
	collector := metrics.NewCollector()
	catalog := prompt.NewCatalog(time.Now().UnixNano())

	execOpts := executor.Options{
		Client:     client,
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retries,
		Gauge:      store,
		Logger:     logger,
		Propagate:  provider.ShouldPropagate(),
	}
	if cfg.Tracing.Enabled() {
		execOpts.Tracer = provider.Tracer()
	}

	var printer *output.Printer
	if !cfg.JSONOutput {
		printer = output.NewPrinter(os.Stdout, collector)
	}

	runnerOpts := runner.Options{
		Client:             client,
		Endpoint:           cfg.Endpoint,
		APIKey:             cfg.APIKey,
		Model:              cfg.Model,
		Concurrency:        cfg.Concurrency,
		Duration:           cfg.Duration,
		MaxContextTokens:   cfg.MaxContextTokens,
		MaxRPS:             cfg.MaxRPS,
		HealthInterval:     cfg.HealthInterval,
		HealthStartupDelay: cfg.HealthStartupDelay,
		Catalog:            catalog,
		Executor:           executor.New(execOpts),
		Store:              store,
		Logger:             logger,
		OnOutcome: func(o results.Outcome) {
			collector.RecordOutcome(o.Latency, o.Status == results.StatusSuccess)
			if printer != nil {
				printer.Outcome(o)
			}
		},
	}
	runnerOpts.OnHealth = func(sample results.HealthSample) {
		if printer != nil {
			printer.Health(sample, store.InFlight())
		}
	}

	r, err := runner.New(runnerOpts)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	runID := output.NewRunID()
	logger.Info("starting load test",
		zap.String("run_id", runID),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("model", cfg.Model),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Duration("duration", cfg.Duration),
	)

	collector.Start()
	result, runErr := r.Run(ctx)

	// Report and persist whatever was gathered, even when the run stopped
	// early or the pre-flight check failed.
	summary := report.Build(store.Outcomes(), store.Health(), result.Wall, result.FinalAlive)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, summary); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, summary)
	}

	doc := output.Document{
		RunID:           runID,
		Config:          configEcho(cfg),
		Summary:         summary,
		HealthChecks:    store.Health(),
		ResponseSamples: store.ResponseSamples(),
		Results:         store.Outcomes(),
	}
	path, err := output.WriteRunFile(cfg.OutputDir, doc)
	if err != nil {
		return err
	}
	logger.Info("run persisted", zap.String("path", path))

	recordHistory(logger, history.RunSummary{
		RunID:       runID,
		StartedAt:   startedAt,
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		Concurrency: cfg.Concurrency,
		Duration:    result.Wall,
		Total:       summary.Total,
		Successes:   summary.ByStatus[results.StatusSuccess],
		SuccessRate: summary.Percents[results.StatusSuccess] / 100,
		P99Latency:  summary.Latency.P99,
		ResultsFile: path,
	})

	if runErr != nil {
		return runErr
	}

	verdicts := threshold.Evaluate(thresholds, summary)
	if !cfg.JSONOutput {
		output.PrintThresholds(os.Stdout, verdicts)
	}
	if !threshold.AllPass(verdicts) {
		return fmt.Errorf("thresholds not met")
	}
	return nil
}

// configEcho is the subset of configuration stored in the run document. The
// API key never lands on disk.
func configEcho(cfg *config.Config) map[string]any {
	return map[string]any{
		"endpoint":             cfg.Endpoint,
		"model":                cfg.Model,
		"concurrency":          cfg.Concurrency,
		"duration":             cfg.Duration.String(),
		"max_context_tokens":   cfg.MaxContextTokens,
		"max_rps":              cfg.MaxRPS,
		"timeout":              cfg.Timeout.String(),
		"retries":              cfg.Retries,
		"health_interval":      cfg.HealthInterval.String(),
		"health_startup_delay": cfg.HealthStartupDelay.String(),
	}
}

func recordHistory(logger *zap.Logger, run history.RunSummary) {
	path, err := history.DefaultPath()
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer store.Close()
	if err := store.Append(run); err != nil {
		logger.Warn("history append failed", zap.Error(err))
	}
}

func listRuns(limit int) error {
	path, err := history.DefaultPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if limit < 0 {
		limit = 0
	}
	runs, err := store.List(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %s  %s  c=%d  %d req  %.1f%% ok  p99 %.2fs  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Model,
			run.Duration.Round(time.Second),
			run.Concurrency,
			run.Total,
			run.SuccessRate*100,
			run.P99Latency.Seconds(),
			run.ResultsFile,
		)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core), nil
}
