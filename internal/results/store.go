// Package results defines the immutable per-request and per-probe records
// produced during a run, and a concurrency-safe append-only store for them.
package results

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is the terminal state of one logical request.
type Status string

const (
	StatusSuccess                 Status = "success"
	StatusClientError             Status = "client_error"
	StatusServerErrorExhausted    Status = "server_error_exhausted"
	StatusTimeoutExhausted        Status = "timeout_exhausted"
	StatusTransportErrorExhausted Status = "transport_error_exhausted"
)

// IsSuccess reports whether the status is the successful terminal state.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// Outcome is the single record produced per logical request, however many
// attempts it took. Latency covers the final attempt only.
type Outcome struct {
	UserID         int           `json:"user_id"`
	Workload       string        `json:"workload"`
	TargetTokens   int           `json:"target_tokens"`
	Status         Status        `json:"status"`
	Latency        time.Duration `json:"-"`
	LatencyMs      float64       `json:"latency_ms"`
	TokensSent     int           `json:"tokens_sent"`
	TokensReceived int           `json:"tokens_received"`
	Response       string        `json:"response,omitempty"`
	Error          string        `json:"error,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Retries        int           `json:"retries"`
}

// HealthSample is one liveness probe result.
type HealthSample struct {
	Timestamp  time.Time `json:"timestamp"`
	Healthy    bool      `json:"healthy"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// ResponseSample is a bounded excerpt of an early successful response,
// kept so operators can spot-check that the endpoint returned real text.
type ResponseSample struct {
	UserID    int       `json:"user_id"`
	Workload  string    `json:"workload"`
	Timestamp time.Time `json:"timestamp"`
	Excerpt   string    `json:"excerpt"`
}

const (
	maxResponseSamples     = 50
	responseSampleMaxChars = 500
)

// Store collects outcomes and health samples from concurrent producers.
// Entries are append-only; nothing is mutated or removed after insertion.
// Counts and the in-flight gauge are readable mid-run without blocking
// writers for long.
type Store struct {
	mu        sync.Mutex
	outcomes  []Outcome
	health    []HealthSample
	samples   []ResponseSample
	inFlight  atomic.Int64
	nOutcomes atomic.Int64
	nHealth   atomic.Int64
}

func NewStore() *Store {
	return &Store{}
}

// AppendOutcome records one completed logical request. The first successful
// responses are additionally kept as bounded samples.
func (s *Store) AppendOutcome(o Outcome) {
	o.LatencyMs = float64(o.Latency) / float64(time.Millisecond)
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	if o.Status.IsSuccess() && len(s.samples) < maxResponseSamples {
		s.samples = append(s.samples, ResponseSample{
			UserID:    o.UserID,
			Workload:  o.Workload,
			Timestamp: o.Timestamp,
			Excerpt:   truncate(o.Response, responseSampleMaxChars),
		})
	}
	s.mu.Unlock()
	s.nOutcomes.Add(1)
}

// AppendHealth records one probe result.
func (s *Store) AppendHealth(h HealthSample) {
	s.mu.Lock()
	s.health = append(s.health, h)
	s.mu.Unlock()
	s.nHealth.Add(1)
}

// OutcomeCount returns the number of recorded outcomes without taking the
// store lock, for cheap mid-run progress reads.
func (s *Store) OutcomeCount() int { return int(s.nOutcomes.Load()) }

// HealthCount returns the number of recorded health samples.
func (s *Store) HealthCount() int { return int(s.nHealth.Load()) }

// IncInFlight bumps the diagnostic gauge of requests currently in flight.
func (s *Store) IncInFlight() { s.inFlight.Add(1) }

// DecInFlight decrements the in-flight gauge.
func (s *Store) DecInFlight() { s.inFlight.Add(-1) }

// InFlight returns the current in-flight gauge value.
func (s *Store) InFlight() int { return int(s.inFlight.Load()) }

// Outcomes returns a copy of all recorded outcomes in append order.
func (s *Store) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.outcomes...)
}

// Health returns a copy of all recorded health samples in append order.
func (s *Store) Health() []HealthSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HealthSample(nil), s.health...)
}

// ResponseSamples returns a copy of the retained response excerpts.
func (s *Store) ResponseSamples() []ResponseSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ResponseSample(nil), s.samples...)
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}

// Truncate bounds text to max bytes; exported for the persistence layer so
// stored response content uses the same rule as sampling.
func Truncate(text string, max int) string { return truncate(text, max) }
