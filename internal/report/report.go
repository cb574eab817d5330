// Package report computes the end-of-run aggregate from the result store.
// Everything here is a pure function of the recorded entries: building the
// same report twice over an unmodified store yields identical numbers.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/llmburst/llmburst/internal/results"
)

const (
	topErrorCount      = 10
	errorKeyChars      = 100
	timelineMaxSamples = 20
)

// LatencyStats summarize successful-outcome latencies.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	Median time.Duration `json:"median"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
}

// TokenStats summarize token volume across successful outcomes.
type TokenStats struct {
	AvgSent       float64 `json:"avg_sent"`
	AvgReceived   float64 `json:"avg_received"`
	TotalSent     int     `json:"total_sent"`
	TotalReceived int     `json:"total_received"`
}

// WorkloadStats is the per-workload breakdown row.
type WorkloadStats struct {
	Workload    string        `json:"workload"`
	Count       int           `json:"count"`
	Successes   int           `json:"successes"`
	MeanLatency time.Duration `json:"mean_latency"`
}

// ErrorCount is one row of the error-frequency table.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// HealthSummary aggregates the probe samples.
type HealthSummary struct {
	Total      int                    `json:"total"`
	Healthy    int                    `json:"healthy"`
	Unhealthy  int                    `json:"unhealthy"`
	FinalAlive bool                   `json:"final_alive"`
	Timeline   []results.HealthSample `json:"timeline,omitempty"`
}

// Report is the derived aggregate for one run.
type Report struct {
	Total      int                        `json:"total"`
	ByStatus   map[results.Status]int     `json:"by_status"`
	Percents   map[results.Status]float64 `json:"percents"`
	Retried    int                        `json:"retried"`
	RetriedPct float64                    `json:"retried_pct"`

	Latency   LatencyStats    `json:"latency"`
	Tokens    TokenStats      `json:"tokens"`
	Workloads []WorkloadStats `json:"workloads"`
	TopErrors []ErrorCount    `json:"top_errors"`

	Throughput        float64 `json:"throughput_rps"`
	SuccessThroughput float64 `json:"success_throughput_rps"`

	Health   HealthSummary `json:"health"`
	Duration time.Duration `json:"duration"`
}

// Build derives the aggregate from the recorded outcomes and health samples.
// wall is the actual wall-clock run duration; finalAlive the monitor's last
// verdict.
func Build(outcomes []results.Outcome, health []results.HealthSample, wall time.Duration, finalAlive bool) Report {
	r := Report{
		Total:    len(outcomes),
		ByStatus: map[results.Status]int{},
		Percents: map[results.Status]float64{},
		Duration: wall,
	}

	var successes []results.Outcome
	var latencies []time.Duration
	byWorkload := map[string][]results.Outcome{}
	errorCounts := map[string]int{}

	for _, o := range outcomes {
		r.ByStatus[o.Status]++
		if o.Retries > 0 {
			r.Retried++
		}
		byWorkload[o.Workload] = append(byWorkload[o.Workload], o)
		if o.Status.IsSuccess() {
			successes = append(successes, o)
			latencies = append(latencies, o.Latency)
		} else {
			key := o.Error
			if key == "" {
				key = "unknown"
			}
			if len(key) > errorKeyChars {
				key = key[:errorKeyChars]
			}
			errorCounts[key]++
		}
	}

	if r.Total > 0 {
		for status, n := range r.ByStatus {
			r.Percents[status] = 100 * float64(n) / float64(r.Total)
		}
		r.RetriedPct = 100 * float64(r.Retried) / float64(r.Total)
	}

	r.Latency = latencyStats(latencies)
	r.Tokens = tokenStats(successes)
	r.Workloads = workloadStats(byWorkload)
	r.TopErrors = topErrors(errorCounts)

	if wall > 0 {
		r.Throughput = float64(r.Total) / wall.Seconds()
		r.SuccessThroughput = float64(len(successes)) / wall.Seconds()
	}

	r.Health = HealthSummary{Total: len(health), FinalAlive: finalAlive}
	for _, h := range health {
		if h.Healthy {
			r.Health.Healthy++
		} else {
			r.Health.Unhealthy++
		}
	}
	if n := len(health); n > 0 && n <= timelineMaxSamples {
		r.Health.Timeline = append([]results.HealthSample(nil), health...)
	}

	return r
}

func latencyStats(latencies []time.Duration) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	return LatencyStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / time.Duration(len(sorted)),
		Median: median(sorted),
		P95:    Percentile(sorted, 0.95),
		P99:    Percentile(sorted, 0.99),
	}
}

// Percentile picks the element at index floor(n*p) of the ascending-sorted
// sequence. This exact index rule is load-bearing: reports produced by
// earlier versions of this tool used it, and runs are compared across
// versions.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func tokenStats(successes []results.Outcome) TokenStats {
	if len(successes) == 0 {
		return TokenStats{}
	}
	var stats TokenStats
	for _, o := range successes {
		stats.TotalSent += o.TokensSent
		stats.TotalReceived += o.TokensReceived
	}
	n := float64(len(successes))
	stats.AvgSent = float64(stats.TotalSent) / n
	stats.AvgReceived = float64(stats.TotalReceived) / n
	return stats
}

func workloadStats(byWorkload map[string][]results.Outcome) []WorkloadStats {
	rows := make([]WorkloadStats, 0, len(byWorkload))
	for workload, outcomes := range byWorkload {
		row := WorkloadStats{Workload: workload, Count: len(outcomes)}
		var sum time.Duration
		for _, o := range outcomes {
			if o.Status.IsSuccess() {
				row.Successes++
				sum += o.Latency
			}
		}
		if row.Successes > 0 {
			row.MeanLatency = sum / time.Duration(row.Successes)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Workload < rows[j].Workload })
	return rows
}

func topErrors(counts map[string]int) []ErrorCount {
	rows := make([]ErrorCount, 0, len(counts))
	for msg, n := range counts {
		rows = append(rows, ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Message < rows[j].Message
		}
		return rows[i].Count > rows[j].Count
	})
	if len(rows) > topErrorCount {
		rows = rows[:topErrorCount]
	}
	return rows
}
