package health_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llmburst/llmburst/internal/health"
	"github.com/llmburst/llmburst/internal/httpclient"
	"github.com/llmburst/llmburst/internal/results"
)

func newMonitor(serverURL string, store *results.Store, deadline time.Time, interval, startup time.Duration) *health.Monitor {
	return health.New(health.Options{
		Client:       httpclient.NewClient(2, false),
		Endpoint:     serverURL,
		Model:        "m",
		Interval:     interval,
		StartupDelay: startup,
		ProbeTimeout: time.Second,
		Deadline:     deadline,
		Store:        store,
	})
}

func TestProbeHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"OK"}}],"usage":{"completion_tokens":1}}`)
	}))
	defer server.Close()

	m := newMonitor(server.URL, results.NewStore(), time.Now(), time.Second, 0)
	sample := m.Probe(context.Background())

	if !sample.Healthy {
		t.Fatalf("expected healthy sample, got %+v", sample)
	}
	if sample.HTTPStatus != http.StatusOK {
		t.Errorf("http status = %d", sample.HTTPStatus)
	}
	if sample.Detail != "OK" {
		t.Errorf("detail = %q, want probe response text", sample.Detail)
	}
}

func TestProbeUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newMonitor(server.URL, results.NewStore(), time.Now(), time.Second, 0)
	sample := m.Probe(context.Background())

	if sample.Healthy {
		t.Fatal("expected unhealthy sample")
	}
	if sample.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("http status = %d", sample.HTTPStatus)
	}
}

func TestProbeTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	m := newMonitor(url, results.NewStore(), time.Now(), time.Second, 0)
	sample := m.Probe(context.Background())
	if sample.Healthy || sample.Detail == "" {
		t.Fatalf("expected unhealthy sample with detail, got %+v", sample)
	}
}

// Sample count follows floor((D - startupDelay) / interval) + 1, independent
// of workload volume.
func TestMonitorCadence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"OK"}}]}`)
	}))
	defer server.Close()

	store := results.NewStore()
	startup := 20 * time.Millisecond
	interval := 50 * time.Millisecond
	duration := 220 * time.Millisecond

	m := newMonitor(server.URL, store, time.Now().Add(duration), interval, startup)
	m.Run(context.Background())

	// floor((220-20)/50)+1 = 5, with slack for scheduling and probe time.
	got := store.HealthCount()
	if got < 3 || got > 6 {
		t.Fatalf("sample count = %d, want about 5", got)
	}
}

func TestMonitorSurfacesTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"OK"}}]}`)
			return
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	store := results.NewStore()
	m := newMonitor(server.URL, store, time.Now().Add(time.Hour), 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	if !m.Alive() {
		t.Error("monitor should report alive while the endpoint is healthy")
	}

	healthy.Store(false)
	time.Sleep(60 * time.Millisecond)
	if m.Alive() {
		t.Error("monitor should report dead after failures")
	}

	cancel()
	<-done

	// The loop must have kept sampling through the outage.
	var unhealthySeen bool
	for _, s := range store.Health() {
		if !s.Healthy {
			unhealthySeen = true
		}
	}
	if !unhealthySeen {
		t.Error("expected unhealthy samples recorded during the outage")
	}
}
