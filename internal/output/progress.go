// Package output renders the observational stream (one line per outcome and
// per health check), the final human-readable report, and the persisted run
// document.
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/llmburst/llmburst/internal/metrics"
	"github.com/llmburst/llmburst/internal/results"
)

const snippetChars = 80

// Printer writes the live progress stream. Safe for concurrent use by all
// sessions and the health monitor.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	collector *metrics.Collector
	start     time.Time
}

func NewPrinter(w io.Writer, collector *metrics.Collector) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{w: w, collector: collector, start: time.Now()}
}

// Outcome prints one progress line for a completed logical request.
func (p *Printer) Outcome(o results.Outcome) {
	retryInfo := ""
	if o.Retries > 0 {
		retryInfo = fmt.Sprintf(" (retry %d)", o.Retries)
	}
	snippet := ""
	if o.Response != "" {
		snippet = fmt.Sprintf(" | %s...", truncate(o.Response, snippetChars))
	}

	line := fmt.Sprintf("[user %03d] %s | %dK tokens | %s%s | %.2fs%s",
		o.UserID, o.Workload, o.TargetTokens/1000, o.Status, retryInfo,
		o.Latency.Seconds(), snippet)

	if p.collector != nil {
		stats := p.collector.Snapshot()
		line += fmt.Sprintf(" | total %d, %.1f rps, p99 %.1fs",
			stats.Total, stats.RequestsPerSec, stats.P99Latency.Seconds())
	}

	p.mu.Lock()
	fmt.Fprintln(p.w, line)
	p.mu.Unlock()
}

// Health prints one line per probe, with the in-flight gauge for context.
func (p *Printer) Health(sample results.HealthSample, inFlight int) {
	verdict := "ALIVE"
	detail := sample.Detail
	if !sample.Healthy {
		verdict = "DOWN"
	}
	elapsed := time.Since(p.start)

	p.mu.Lock()
	fmt.Fprintf(p.w, "[health] endpoint %s (elapsed %.0fs, in-flight %d) %s\n",
		verdict, elapsed.Seconds(), inFlight, truncate(detail, snippetChars))
	if !sample.Healthy {
		fmt.Fprintln(p.w, "[health] probe failed; continuing to gather failure data")
	}
	p.mu.Unlock()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
