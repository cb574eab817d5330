package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load([]string{"--endpoint", "http://localhost:8000", "--model", "llama"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if cfg.Duration != time.Minute {
		t.Errorf("Duration = %s, want 1m", cfg.Duration)
	}
	if cfg.MaxContextTokens != 8192 {
		t.Errorf("MaxContextTokens = %d, want 8192", cfg.MaxContextTokens)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Timeout = %s, want 2m", cfg.Timeout)
	}
	if cfg.Retries != 2 {
		t.Errorf("Retries = %d, want 2", cfg.Retries)
	}
	if cfg.HealthInterval != 30*time.Second {
		t.Errorf("HealthInterval = %s, want 30s", cfg.HealthInterval)
	}
	if cfg.OutputDir != "results" {
		t.Errorf("OutputDir = %q, want results", cfg.OutputDir)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	cfg, err := NewLoader().Load([]string{"--endpoint", "http://localhost:8000/", "--model", "llama"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "http://localhost:8000" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("LLMBURST_API_KEY", "sk-env")
	cfg, err := NewLoader().Load([]string{"--endpoint", "http://x", "--model", "m"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want env fallback", cfg.APIKey)
	}

	cfg, err = NewLoader().Load([]string{"--endpoint", "http://x", "--model", "m", "--api-key", "sk-flag"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-flag" {
		t.Errorf("APIKey = %q, flag should beat env", cfg.APIKey)
	}
}

func TestLoadFromFileWithFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
endpoint: http://file-endpoint:8000
model: file-model
concurrency: 25
duration: 5m
max_context_tokens: 32000
thresholds:
  - "success_rate >= 0.9"
tracing:
  endpoint: collector:4317
  sample_rate: 0.5
  insecure: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load([]string{"--config", path, "--concurrency", "50"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "http://file-endpoint:8000" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Model != "file-model" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Concurrency != 50 {
		t.Errorf("Concurrency = %d, flag should override file", cfg.Concurrency)
	}
	if cfg.Duration != 5*time.Minute {
		t.Errorf("Duration = %s, want 5m from file", cfg.Duration)
	}
	if cfg.MaxContextTokens != 32000 {
		t.Errorf("MaxContextTokens = %d", cfg.MaxContextTokens)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "success_rate >= 0.9" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "collector:4317" || cfg.Tracing.SampleRate != 0.5 || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadNoArgsShowsHelp(t *testing.T) {
	_, err := NewLoader().Load(nil)
	if !errors.Is(err, ErrHelpRequested) {
		t.Errorf("err = %v, want ErrHelpRequested", err)
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := Config{
		Concurrency:      0,
		Duration:         0,
		MaxContextTokens: 10,
		Timeout:          -1,
		Retries:          -1,
		LogLevel:         "verbose",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err type %T", err)
	}
	issues := verr.Issues()
	if len(issues) < 6 {
		t.Errorf("got %d issues, want all collected: %v", len(issues), issues)
	}
	for _, want := range []string{"endpoint is required", "model is required", "concurrency", "duration", "log-level"} {
		found := false
		for _, issue := range issues {
			if strings.Contains(issue, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing issue about %q in %v", want, issues)
		}
	}
}

func TestValidateOKForInspectionModes(t *testing.T) {
	if err := (Config{DumpConfig: true}).Validate(); err != nil {
		t.Errorf("dump-config should not require a target: %v", err)
	}
	if err := (Config{ListRuns: -1}).Validate(); err != nil {
		t.Errorf("list-runs should not require a target: %v", err)
	}
}

func TestDumpYAMLOmitsAPIKey(t *testing.T) {
	cfg, err := NewLoader().Load([]string{
		"--endpoint", "http://localhost:8000", "--model", "llama", "--api-key", "sk-secret",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := DumpYAML(cfg)
	if err != nil {
		t.Fatalf("DumpYAML: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Error("dump must not leak the API key")
	}
	if !strings.Contains(out, "endpoint: http://localhost:8000") {
		t.Errorf("dump missing endpoint:\n%s", out)
	}

	// The dump must parse as a config file.
	path := filepath.Join(t.TempDir(), "dumped.yaml")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("reload dumped config: %v", err)
	}
	if again.Endpoint != cfg.Endpoint || again.Concurrency != cfg.Concurrency {
		t.Errorf("dumped config did not round-trip: %+v", again)
	}
}
