// Package runner wires sessions and the health monitor into one run: it
// performs the pre-flight probe, launches every goroutine, and joins them
// when the window closes.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/llmburst/llmburst/internal/executor"
	"github.com/llmburst/llmburst/internal/health"
	"github.com/llmburst/llmburst/internal/prompt"
	"github.com/llmburst/llmburst/internal/results"
	"github.com/llmburst/llmburst/internal/session"
)

// Options configure a run.
type Options struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Model    string

	Concurrency      int
	Duration         time.Duration
	MaxContextTokens int

	// MaxRPS, when positive, caps the aggregate request rate across all
	// sessions with a shared token bucket.
	MaxRPS float64

	JitterMax time.Duration
	ThinkMin  time.Duration
	ThinkMax  time.Duration

	HealthInterval     time.Duration
	HealthStartupDelay time.Duration
	HealthProbeTimeout time.Duration

	Catalog  *prompt.Catalog
	Executor *executor.Executor
	Store    *results.Store

	OnOutcome session.Observer
	OnHealth  health.Observer
	Logger    *zap.Logger
}

// Result is what a completed run hands to reporting.
type Result struct {
	Wall       time.Duration
	FinalAlive bool
}

// Runner owns the goroutines of one run.
type Runner struct {
	opt     Options
	monitor *health.Monitor
}

func New(opt Options) (*Runner, error) {
	if opt.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", opt.Concurrency)
	}
	if opt.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opt.Duration)
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Runner{opt: opt}, nil
}

// Run executes the full load test and blocks until every session and the
// health monitor have returned. Cancelling ctx stops the run early; results
// gathered so far remain in the store.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	deadline := start.Add(r.opt.Duration)

	r.monitor = health.New(health.Options{
		Client:       r.opt.Client,
		Endpoint:     r.opt.Endpoint,
		APIKey:       r.opt.APIKey,
		Model:        r.opt.Model,
		Interval:     r.opt.HealthInterval,
		StartupDelay: r.opt.HealthStartupDelay,
		ProbeTimeout: r.opt.HealthProbeTimeout,
		Deadline:     deadline,
		Store:        r.opt.Store,
		Observer:     r.opt.OnHealth,
		Logger:       r.opt.Logger,
	})

	// Pre-flight probe. A dead endpoint does not stop the run: the failure
	// window is data, and the monitor will flag recovery if it comes.
	initial := r.monitor.Probe(ctx)
	r.monitor.RecordInitial(initial)
	if initial.Healthy {
		r.opt.Logger.Info("endpoint healthy, starting run",
			zap.Int("concurrency", r.opt.Concurrency),
			zap.Duration("duration", r.opt.Duration),
		)
	} else {
		r.opt.Logger.Warn("endpoint failed pre-flight health check, continuing to gather failure data",
			zap.Int("http_status", initial.HTTPStatus),
			zap.String("detail", initial.Detail),
		)
	}

	var limiter *rate.Limiter
	if r.opt.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opt.MaxRPS), 1)
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.monitor.Run(runCtx)
		return nil
	})

	for i := 0; i < r.opt.Concurrency; i++ {
		s := session.New(session.Options{
			ID:               i,
			Catalog:          r.opt.Catalog,
			Executor:         r.opt.Executor,
			Store:            r.opt.Store,
			MaxContextTokens: r.opt.MaxContextTokens,
			Deadline:         deadline,
			JitterMax:        r.opt.JitterMax,
			ThinkMin:         r.opt.ThinkMin,
			ThinkMax:         r.opt.ThinkMax,
			Limiter:          limiter,
			Observer:         r.opt.OnOutcome,
			Logger:           r.opt.Logger,
		})
		g.Go(func() error {
			s.Run(runCtx)
			return nil
		})
	}

	err := g.Wait()
	return Result{Wall: time.Since(start), FinalAlive: r.monitor.Alive()}, err
}
