// Package metrics keeps cheap mid-run counters and a latency histogram used
// for the live progress stream. Final reporting works from the result store,
// not from this collector.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-outcome latency and success state in a thread-safe
// manner. Percentiles here are histogram approximations good enough for a
// progress line; the end-of-run report computes exact values.
type Collector struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	successes int64
	failures  int64
	start     time.Time
}

// LiveStats is a snapshot of mid-run progress numbers.
type LiveStats struct {
	Total          int64
	Successes      int64
	Failures       int64
	RequestsPerSec float64
	P50Latency     time.Duration
	P99Latency     time.Duration
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 10m with 3 significant figures; LLM
	// completions under load can take minutes.
	return &Collector{
		hist:  hdrhistogram.New(1, 600_000_000, 3),
		start: time.Now(),
	}
}

// Start marks the moment the run actually began, for RPS calculation.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// RecordOutcome folds one completed logical request into the live counters.
func (c *Collector) RecordOutcome(latency time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}

	if success {
		c.successes++
	} else {
		c.failures++
	}
}

// Snapshot returns current progress numbers.
func (c *Collector) Snapshot() LiveStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := LiveStats{
		Total:     c.successes + c.failures,
		Successes: c.successes,
		Failures:  c.failures,
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if elapsed := time.Since(c.start); elapsed > 0 && stats.Total > 0 {
		stats.RequestsPerSec = float64(stats.Total) / elapsed.Seconds()
	}
	return stats
}
