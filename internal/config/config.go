package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/llmburst/llmburst/internal/tracing"
)

type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`

	Concurrency      int           `mapstructure:"concurrency"`
	Duration         time.Duration `mapstructure:"duration"`
	MaxContextTokens int           `mapstructure:"max_context_tokens"`
	MaxRPS           float64       `mapstructure:"max_rps"`

	Timeout            time.Duration `mapstructure:"timeout"`
	Retries            int           `mapstructure:"retries"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`

	HealthInterval     time.Duration `mapstructure:"health_interval"`
	HealthStartupDelay time.Duration `mapstructure:"health_startup_delay"`

	OutputDir  string   `mapstructure:"output_dir"`
	JSONOutput bool     `mapstructure:"json_output"`
	LogLevel   string   `mapstructure:"log_level"`
	Thresholds []string `mapstructure:"thresholds"`

	Tracing tracing.Config `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
	DumpConfig bool   `mapstructure:"-"`
	ListRuns   int    `mapstructure:"-"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	// Pure inspection modes do not need a target.
	if c.DumpConfig || c.ListRuns != 0 {
		return nil
	}

	if strings.TrimSpace(c.Endpoint) == "" {
		issues = append(issues, "endpoint is required (use --help for usage information)")
	}
	if strings.TrimSpace(c.Model) == "" {
		issues = append(issues, "model is required")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.MaxContextTokens < 1000 {
		issues = append(issues, "max-context-tokens must be >= 1000")
	}
	if c.MaxRPS < 0 {
		issues = append(issues, "max-rps must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.HealthInterval <= 0 {
		issues = append(issues, "health-interval must be > 0")
	}
	if c.HealthStartupDelay < 0 {
		issues = append(issues, "health-startup-delay must be >= 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level must be debug, info, warn, or error, got %q", c.LogLevel))
	}

	if c.Concurrency > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d sessions). Ensure you have authorization to test the target system.\n", c.Concurrency)
	}
	if c.InsecureSkipVerify {
		fmt.Fprintln(os.Stderr, "WARNING: TLS verification is DISABLED. This should ONLY be used against development endpoints.")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
