package output

import (
	"fmt"
	"io"
	"time"

	"github.com/llmburst/llmburst/internal/report"
	"github.com/llmburst/llmburst/internal/results"
	"github.com/llmburst/llmburst/internal/threshold"
)

var statusOrder = []results.Status{
	results.StatusSuccess,
	results.StatusClientError,
	results.StatusServerErrorExhausted,
	results.StatusTimeoutExhausted,
	results.StatusTransportErrorExhausted,
}

// PrintReport writes the final human-readable summary.
func PrintReport(w io.Writer, r report.Report) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", r.Total)
	for _, status := range statusOrder {
		if n, ok := r.ByStatus[status]; ok {
			fmt.Fprintf(w, "  %-28s %d (%.1f%%)\n", status+":", n, r.Percents[status])
		}
	}
	if r.Retried > 0 {
		fmt.Fprintf(w, "Retried Requests:  %d (%.1f%%)\n", r.Retried, r.RetriedPct)
	}
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f (successful: %.2f)\n", r.Throughput, r.SuccessThroughput)

	if r.ByStatus[results.StatusSuccess] > 0 {
		fmt.Fprintln(w, "\nLatency (successful, final attempt):")
		fmt.Fprintf(w, "  Min:             %.2fs\n", r.Latency.Min.Seconds())
		fmt.Fprintf(w, "  Max:             %.2fs\n", r.Latency.Max.Seconds())
		fmt.Fprintf(w, "  Mean:            %.2fs\n", r.Latency.Mean.Seconds())
		fmt.Fprintf(w, "  Median:          %.2fs\n", r.Latency.Median.Seconds())
		fmt.Fprintf(w, "  P95:             %.2fs\n", r.Latency.P95.Seconds())
		fmt.Fprintf(w, "  P99:             %.2fs\n", r.Latency.P99.Seconds())

		fmt.Fprintln(w, "\nTokens:")
		fmt.Fprintf(w, "  Avg Sent:        %.0f\n", r.Tokens.AvgSent)
		fmt.Fprintf(w, "  Avg Received:    %.0f\n", r.Tokens.AvgReceived)
		fmt.Fprintf(w, "  Total Sent:      %d\n", r.Tokens.TotalSent)
		fmt.Fprintf(w, "  Total Received:  %d\n", r.Tokens.TotalReceived)
	}

	if len(r.Workloads) > 0 {
		fmt.Fprintln(w, "\nWorkload Breakdown:")
		for _, row := range r.Workloads {
			fmt.Fprintf(w, "  %s: %d requests, %d successful, mean %.2fs\n",
				row.Workload, row.Count, row.Successes, row.MeanLatency.Seconds())
		}
	}

	if len(r.TopErrors) > 0 {
		fmt.Fprintln(w, "\nTop Errors:")
		for _, row := range r.TopErrors {
			fmt.Fprintf(w, "  [%dx] %s\n", row.Count, row.Message)
		}
	}

	fmt.Fprintln(w, "\nEndpoint Health:")
	fmt.Fprintf(w, "  Probes:          %d (healthy %d, unhealthy %d)\n",
		r.Health.Total, r.Health.Healthy, r.Health.Unhealthy)
	final := "ALIVE"
	if !r.Health.FinalAlive {
		final = "DOWN"
	}
	fmt.Fprintf(w, "  Final Status:    %s\n", final)
	if len(r.Health.Timeline) > 0 {
		fmt.Fprintln(w, "  Timeline:")
		for _, s := range r.Health.Timeline {
			mark := "ok"
			if !s.Healthy {
				mark = "FAIL"
			}
			fmt.Fprintf(w, "    %s  %-4s %s\n",
				s.Timestamp.Format("15:04:05"), mark, truncate(s.Detail, 50))
		}
	}
}

// PrintThresholds writes the threshold verdicts.
func PrintThresholds(w io.Writer, rs []threshold.Result) {
	if len(rs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range rs {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}
