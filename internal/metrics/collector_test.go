package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/llmburst/llmburst/internal/metrics"
)

func TestCollectorCounts(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOutcome(10*time.Millisecond, true)
	c.RecordOutcome(20*time.Millisecond, true)
	c.RecordOutcome(30*time.Millisecond, false)

	stats := c.Snapshot()
	if stats.Total != 3 || stats.Successes != 2 || stats.Failures != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.P50Latency <= 0 || stats.P99Latency < stats.P50Latency {
		t.Fatalf("unexpected percentiles: p50=%s p99=%s", stats.P50Latency, stats.P99Latency)
	}
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()
	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 500
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.RecordOutcome(time.Millisecond, i%10 != 0)
			}
		}()
	}
	wg.Wait()

	stats := c.Snapshot()
	if stats.Total != workers*perWorker {
		t.Fatalf("total = %d, want %d", stats.Total, workers*perWorker)
	}
	if stats.Failures != workers*perWorker/10 {
		t.Fatalf("failures = %d, want %d", stats.Failures, workers*perWorker/10)
	}
}

func TestCollectorClampsExtremeLatency(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOutcome(2*time.Hour, true)
	stats := c.Snapshot()
	if stats.P99Latency > 11*time.Minute {
		t.Fatalf("latency should clamp to the trackable range, got %s", stats.P99Latency)
	}
}
