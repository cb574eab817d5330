package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llmburst",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("endpoint", "", "Base URL of the OpenAI-compatible inference server")
	flags.String("api-key", "", "Bearer token (falls back to LLMBURST_API_KEY)")
	flags.StringP("model", "m", "", "Model name to request")

	// Load control flags
	flags.IntP("concurrency", "c", 10, "Number of concurrent user sessions")
	flags.DurationP("duration", "d", time.Minute, "How long to run the test (e.g. 30s, 5m)")
	flags.Int("max-context-tokens", 8192, "Model context window used to size prompts")
	flags.Float64("max-rps", 0, "Aggregate requests-per-second cap across all sessions (0 means unlimited)")
	flags.Duration("timeout", 120*time.Second, "Per-attempt request timeout")
	flags.Int("retries", 2, "Max retries per request for retryable failures")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification")

	// Health monitor flags
	flags.Duration("health-interval", 30*time.Second, "Interval between liveness probes")
	flags.Duration("health-startup-delay", 2*time.Second, "Delay before the first periodic probe")

	// Output flags
	flags.String("output-dir", "results", "Directory for persisted run files")
	flags.Bool("json-output", false, "Emit the final report as JSON instead of text")
	flags.String("log-level", "info", "Log level: debug, info, warn, or error")
	flags.StringSlice("threshold", nil, "Pass/fail assertion (repeatable, e.g. 'success_rate >= 0.95')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flags.Int("list-runs", 0, "List the N most recent runs from history and exit (-1 for all)")

	// Tracing flags
	flags.String("otlp-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("otlp-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("trace-propagate", false, "Inject W3C trace context into chat requests")
	flags.String("trace-service-name", "", "Service name reported on spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("endpoint") {
		val, err := fs.GetString("endpoint")
		if err != nil {
			return err
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("api-key") {
		val, err := fs.GetString("api-key")
		if err != nil {
			return err
		}
		cfg.APIKey = val
	}
	if fs.Changed("model") {
		val, err := fs.GetString("model")
		if err != nil {
			return err
		}
		cfg.Model = strings.TrimSpace(val)
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("max-context-tokens") {
		val, err := fs.GetInt("max-context-tokens")
		if err != nil {
			return err
		}
		cfg.MaxContextTokens = val
	}
	if fs.Changed("max-rps") {
		val, err := fs.GetFloat64("max-rps")
		if err != nil {
			return err
		}
		cfg.MaxRPS = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("insecure-skip-verify") {
		val, err := fs.GetBool("insecure-skip-verify")
		if err != nil {
			return err
		}
		cfg.InsecureSkipVerify = val
	}
	if fs.Changed("health-interval") {
		val, err := fs.GetDuration("health-interval")
		if err != nil {
			return err
		}
		cfg.HealthInterval = val
	}
	if fs.Changed("health-startup-delay") {
		val, err := fs.GetDuration("health-startup-delay")
		if err != nil {
			return err
		}
		cfg.HealthStartupDelay = val
	}
	if fs.Changed("output-dir") {
		val, err := fs.GetString("output-dir")
		if err != nil {
			return err
		}
		cfg.OutputDir = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("dump-config") {
		val, err := fs.GetBool("dump-config")
		if err != nil {
			return err
		}
		cfg.DumpConfig = val
	}
	if fs.Changed("list-runs") {
		val, err := fs.GetInt("list-runs")
		if err != nil {
			return err
		}
		cfg.ListRuns = val
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-propagate") {
		val, err := fs.GetBool("trace-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	return nil
}
