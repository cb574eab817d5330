// Package threshold parses and evaluates pass/fail assertions against the
// final run report, e.g. "p95<2s", "success_rate>=0.99", "rps>10".
package threshold

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/llmburst/llmburst/internal/report"
	"github.com/llmburst/llmburst/internal/results"
)

// Threshold is one performance assertion.
type Threshold struct {
	Metric   string  // p50, p95, p99, mean, max, min, success_rate, error_rate, rps
	Operator string  // <, <=, >, >=, ==
	Value    float64 // milliseconds for latency metrics, ratio for rates
	Raw      string
}

// Result is the outcome of evaluating one threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var operators = []string{"<=", ">=", "==", "<", ">"}

var latencyMetrics = map[string]bool{
	"min": true, "max": true, "mean": true, "median": true,
	"p50": true, "p95": true, "p99": true,
}

// Parse turns assertion strings into Thresholds. Latency values accept Go
// duration syntax ("1500ms", "2s") or a bare millisecond number.
func Parse(specs []string) ([]Threshold, error) {
	thresholds := make([]Threshold, 0, len(specs))
	for _, raw := range specs {
		t, err := parseOne(raw)
		if err != nil {
			return nil, err
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, nil
}

func parseOne(raw string) (Threshold, error) {
	compact := strings.ReplaceAll(raw, " ", "")
	for _, op := range operators {
		idx := strings.Index(compact, op)
		if idx <= 0 {
			continue
		}
		metric := strings.ToLower(compact[:idx])
		valueText := compact[idx+len(op):]

		if !latencyMetrics[metric] && metric != "success_rate" && metric != "error_rate" && metric != "rps" {
			return Threshold{}, fmt.Errorf("threshold %q: unknown metric %q", raw, metric)
		}
		value, err := parseValue(metric, valueText)
		if err != nil {
			return Threshold{}, fmt.Errorf("threshold %q: %w", raw, err)
		}
		return Threshold{Metric: metric, Operator: op, Value: value, Raw: raw}, nil
	}
	return Threshold{}, fmt.Errorf("threshold %q: expected <metric><op><value>", raw)
}

func parseValue(metric, text string) (float64, error) {
	if latencyMetrics[metric] {
		if d, err := time.ParseDuration(text); err == nil {
			return float64(d) / float64(time.Millisecond), nil
		}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse value %q", text)
	}
	return value, nil
}

// Evaluate checks every threshold against the report.
func Evaluate(thresholds []Threshold, r report.Report) []Result {
	if len(thresholds) == 0 {
		return nil
	}
	out := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		actual := extract(t.Metric, r)
		pass := compare(actual, t.Operator, t.Value)
		verdict := "PASS"
		if !pass {
			verdict = "FAIL"
		}
		out = append(out, Result{
			Threshold: t,
			Actual:    actual,
			Pass:      pass,
			Message:   fmt.Sprintf("%s: %s (actual %.2f)", verdict, t.Raw, actual),
		})
	}
	return out
}

// AllPass reports whether every result passed.
func AllPass(rs []Result) bool {
	for _, r := range rs {
		if !r.Pass {
			return false
		}
	}
	return true
}

func extract(metric string, r report.Report) float64 {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	switch metric {
	case "min":
		return ms(r.Latency.Min)
	case "max":
		return ms(r.Latency.Max)
	case "mean":
		return ms(r.Latency.Mean)
	case "median", "p50":
		return ms(r.Latency.Median)
	case "p95":
		return ms(r.Latency.P95)
	case "p99":
		return ms(r.Latency.P99)
	case "rps":
		return r.Throughput
	case "success_rate":
		if r.Total == 0 {
			return 0
		}
		return float64(r.ByStatus[results.StatusSuccess]) / float64(r.Total)
	case "error_rate":
		if r.Total == 0 {
			return 0
		}
		return 1 - float64(r.ByStatus[results.StatusSuccess])/float64(r.Total)
	default:
		return math.NaN()
	}
}

func compare(actual float64, op string, value float64) bool {
	switch op {
	case "<":
		return actual < value
	case "<=":
		return actual <= value
	case ">":
		return actual > value
	case ">=":
		return actual >= value
	case "==":
		return actual == value
	default:
		return false
	}
}
