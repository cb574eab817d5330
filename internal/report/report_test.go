package report_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/llmburst/llmburst/internal/report"
	"github.com/llmburst/llmburst/internal/results"
)

func sec(n int) time.Duration { return time.Duration(n) * time.Second }

// Given ascending latencies [1..5]s, floor(5*0.95)=4 (0-based) yields 5s.
func TestPercentileIndexRule(t *testing.T) {
	sorted := []time.Duration{sec(1), sec(2), sec(3), sec(4), sec(5)}
	if got := report.Percentile(sorted, 0.95); got != sec(5) {
		t.Fatalf("p95 = %s, want 5s", got)
	}
	if got := report.Percentile(sorted, 0.5); got != sec(3) {
		t.Fatalf("p50 = %s, want 3s (index floor(5*0.5)=2)", got)
	}
	if got := report.Percentile(nil, 0.95); got != 0 {
		t.Fatalf("empty percentile = %s, want 0", got)
	}
	// floor(n*p) == n clamps to the last element.
	if got := report.Percentile(sorted, 1.0); got != sec(5) {
		t.Fatalf("p100 = %s, want 5s", got)
	}
}

func success(user int, workload string, latency time.Duration, sent, recv int) results.Outcome {
	return results.Outcome{
		UserID: user, Workload: workload, Status: results.StatusSuccess,
		Latency: latency, TokensSent: sent, TokensReceived: recv,
	}
}

func failure(workload string, status results.Status, errMsg string, retries int) results.Outcome {
	return results.Outcome{
		Workload: workload, Status: status, Error: errMsg, Retries: retries,
	}
}

func testOutcomes() []results.Outcome {
	return []results.Outcome{
		success(0, "MCP_file_search", sec(1), 100, 10),
		success(1, "MCP_file_search", sec(3), 200, 20),
		success(2, "Agentic_planning_task", sec(2), 300, 30),
		failure("MCP_file_search", results.StatusServerErrorExhausted, "HTTP 500: boom", 2),
		failure("Agentic_planning_task", results.StatusTimeoutExhausted, "request timeout", 2),
		failure("Agentic_planning_task", results.StatusClientError, "HTTP 400: nope", 0),
	}
}

func TestBuildAggregates(t *testing.T) {
	health := []results.HealthSample{
		{Healthy: true}, {Healthy: false}, {Healthy: true},
	}
	r := report.Build(testOutcomes(), health, 10*time.Second, true)

	if r.Total != 6 {
		t.Fatalf("total = %d", r.Total)
	}
	if r.ByStatus[results.StatusSuccess] != 3 || r.ByStatus[results.StatusClientError] != 1 {
		t.Errorf("status counts wrong: %v", r.ByStatus)
	}
	if r.Percents[results.StatusSuccess] != 50 {
		t.Errorf("success pct = %v, want 50", r.Percents[results.StatusSuccess])
	}
	if r.Retried != 2 {
		t.Errorf("retried = %d, want 2", r.Retried)
	}

	if r.Latency.Min != sec(1) || r.Latency.Max != sec(3) || r.Latency.Mean != sec(2) {
		t.Errorf("latency stats wrong: %+v", r.Latency)
	}
	if r.Latency.Median != sec(2) {
		t.Errorf("median = %s, want 2s", r.Latency.Median)
	}

	if r.Tokens.TotalSent != 600 || r.Tokens.TotalReceived != 60 {
		t.Errorf("token totals wrong: %+v", r.Tokens)
	}
	if r.Tokens.AvgSent != 200 || r.Tokens.AvgReceived != 20 {
		t.Errorf("token averages wrong: %+v", r.Tokens)
	}

	if r.Throughput != 0.6 {
		t.Errorf("throughput = %v, want 0.6", r.Throughput)
	}
	if r.SuccessThroughput != 0.3 {
		t.Errorf("success throughput = %v, want 0.3", r.SuccessThroughput)
	}

	if r.Health.Total != 3 || r.Health.Healthy != 2 || r.Health.Unhealthy != 1 {
		t.Errorf("health summary wrong: %+v", r.Health)
	}
	if !r.Health.FinalAlive {
		t.Error("final alive should be true")
	}
	if len(r.Health.Timeline) != 3 {
		t.Errorf("small health set should include the full timeline")
	}
}

func TestBuildWorkloadBreakdown(t *testing.T) {
	r := report.Build(testOutcomes(), nil, time.Second, true)

	if len(r.Workloads) != 2 {
		t.Fatalf("workload rows = %d, want 2", len(r.Workloads))
	}
	var mcp report.WorkloadStats
	for _, row := range r.Workloads {
		if row.Workload == "MCP_file_search" {
			mcp = row
		}
	}
	if mcp.Count != 3 || mcp.Successes != 2 {
		t.Errorf("MCP row wrong: %+v", mcp)
	}
	if mcp.MeanLatency != sec(2) {
		t.Errorf("MCP mean latency = %s, want 2s", mcp.MeanLatency)
	}
}

func TestBuildTopErrorsRankedByFrequency(t *testing.T) {
	outcomes := []results.Outcome{
		failure("w", results.StatusServerErrorExhausted, "HTTP 500: common", 1),
		failure("w", results.StatusServerErrorExhausted, "HTTP 500: common", 1),
		failure("w", results.StatusServerErrorExhausted, "HTTP 500: common", 1),
		failure("w", results.StatusTimeoutExhausted, "request timeout", 2),
	}
	r := report.Build(outcomes, nil, time.Second, false)

	if len(r.TopErrors) != 2 {
		t.Fatalf("top errors = %d rows, want 2", len(r.TopErrors))
	}
	if r.TopErrors[0].Message != "HTTP 500: common" || r.TopErrors[0].Count != 3 {
		t.Errorf("top row wrong: %+v", r.TopErrors[0])
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	outcomes := testOutcomes()
	health := []results.HealthSample{{Healthy: true}}
	first := report.Build(outcomes, health, 10*time.Second, true)
	second := report.Build(outcomes, health, 10*time.Second, true)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two builds over identical inputs must be identical")
	}
}

func TestBuildEmpty(t *testing.T) {
	r := report.Build(nil, nil, time.Second, false)
	if r.Total != 0 || r.Throughput != 0 || len(r.Workloads) != 0 {
		t.Fatalf("empty build should produce zero values: %+v", r)
	}
}
