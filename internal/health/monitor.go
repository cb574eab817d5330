// Package health runs the liveness probe loop. The monitor samples on a
// fixed cadence independent of workload traffic and keeps probing through
// outages so failure windows are captured rather than truncated.
package health

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/llmburst/llmburst/internal/httpclient"
	"github.com/llmburst/llmburst/internal/results"
)

const (
	defaultInterval     = 30 * time.Second
	defaultStartupDelay = 2 * time.Second
	defaultProbeTimeout = 30 * time.Second
	maxDetailChars      = 200
	maxProbeBodyBytes   = 64 << 10
)

// Observer is notified after each sample is stored.
type Observer func(results.HealthSample)

// Options configure a Monitor.
type Options struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Model    string

	Interval     time.Duration
	StartupDelay time.Duration
	ProbeTimeout time.Duration
	Deadline     time.Time

	Store    *results.Store
	Observer Observer
	Logger   *zap.Logger
}

// Monitor issues minimal deterministic probe requests on a fixed interval
// and publishes a liveness flag readable by observers.
type Monitor struct {
	opt   Options
	alive atomic.Bool
}

func New(opt Options) *Monitor {
	if opt.Interval <= 0 {
		opt.Interval = defaultInterval
	}
	if opt.StartupDelay < 0 {
		opt.StartupDelay = defaultStartupDelay
	}
	if opt.ProbeTimeout <= 0 {
		opt.ProbeTimeout = defaultProbeTimeout
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	m := &Monitor{opt: opt}
	m.alive.Store(true)
	return m
}

// Alive reports the most recent probe verdict.
func (m *Monitor) Alive() bool { return m.alive.Load() }

// Probe performs one minimal request (tiny token cap, temperature zero) and
// returns the sample. It does not record or publish anything by itself.
func (m *Monitor) Probe(ctx context.Context) results.HealthSample {
	sample := results.HealthSample{Timestamp: time.Now()}

	probeCtx, cancel := context.WithTimeout(ctx, m.opt.ProbeTimeout)
	defer cancel()

	req, err := httpclient.ChatRequest{
		Endpoint:    m.opt.Endpoint,
		APIKey:      m.opt.APIKey,
		Model:       m.opt.Model,
		Prompt:      httpclient.ProbePrompt,
		MaxTokens:   httpclient.ProbeMaxTokens,
		Temperature: httpclient.ProbeTemperature,
	}.Build(probeCtx)
	if err != nil {
		sample.Detail = bound(err.Error())
		return sample
	}

	resp, err := m.opt.Client.Do(req)
	if err != nil {
		sample.Detail = bound(err.Error())
		return sample
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
	sample.HTTPStatus = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		sample.Healthy = true
		sample.Detail = bound(httpclient.ParseCompletion(body).Content)
	} else {
		sample.Detail = bound(strings.TrimSpace(string(body)))
	}
	return sample
}

// Run samples until the deadline: one fixed startup delay, then one probe
// per interval. Health failures never stop the loop; transitions between
// healthy and unhealthy are surfaced through the log.
func (m *Monitor) Run(ctx context.Context) {
	if !sleep(ctx, m.opt.StartupDelay) {
		return
	}

	for time.Now().Before(m.opt.Deadline) && ctx.Err() == nil {
		m.record(m.Probe(ctx))
		if !sleep(ctx, m.opt.Interval) {
			return
		}
	}
}

func (m *Monitor) record(sample results.HealthSample) {
	wasAlive := m.alive.Swap(sample.Healthy)
	if wasAlive != sample.Healthy {
		if sample.Healthy {
			m.opt.Logger.Info("endpoint recovered", zap.Int("http_status", sample.HTTPStatus))
		} else {
			m.opt.Logger.Warn("endpoint went unhealthy",
				zap.Int("http_status", sample.HTTPStatus),
				zap.String("detail", sample.Detail),
			)
		}
	}
	if m.opt.Store != nil {
		m.opt.Store.AppendHealth(sample)
	}
	if m.opt.Observer != nil {
		m.opt.Observer(sample)
	}
}

// RecordInitial folds a pre-run probe into the store and liveness flag, so
// the startup check shows up in the health timeline like any other sample.
func (m *Monitor) RecordInitial(sample results.HealthSample) {
	m.record(sample)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func bound(s string) string {
	if len(s) > maxDetailChars {
		return s[:maxDetailChars]
	}
	return s
}
