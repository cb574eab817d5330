package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/llmburst/llmburst/internal/tracing"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Flags override file settings, which override defaults.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Concurrency:        10,
		Duration:           time.Minute,
		MaxContextTokens:   8192,
		Timeout:            120 * time.Second,
		Retries:            2,
		HealthInterval:     30 * time.Second,
		HealthStartupDelay: 2 * time.Second,
		OutputDir:          "results",
		LogLevel:           "info",
		ConfigFile:         configPath,
		Tracing: tracing.Config{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LLMBURST_API_KEY")
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "endpoint", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "api_key", "api-key", "apikey"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("api_key: %w", err)
		}
		cfg.APIKey = val
	}

	if raw, ok := lookupSetting(settings, "model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		cfg.Model = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = val
	}

	if raw, ok := lookupSetting(settings, "max_context_tokens", "max-context-tokens", "maxcontexttokens"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_context_tokens: %w", err)
		}
		cfg.MaxContextTokens = val
	}

	if raw, ok := lookupSetting(settings, "max_rps", "max-rps", "maxrps"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("max_rps: %w", err)
		}
		cfg.MaxRPS = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = val
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "insecure_skip_verify", "insecure-skip-verify"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure_skip_verify: %w", err)
		}
		cfg.InsecureSkipVerify = val
	}

	if raw, ok := lookupSetting(settings, "health_interval", "health-interval"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("health_interval: %w", err)
		}
		cfg.HealthInterval = val
	}

	if raw, ok := lookupSetting(settings, "health_startup_delay", "health-startup-delay"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("health_startup_delay: %w", err)
		}
		cfg.HealthStartupDelay = val
	}

	if raw, ok := lookupSetting(settings, "output_dir", "output-dir", "outputdir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output_dir: %w", err)
		}
		cfg.OutputDir = val
	}

	if raw, ok := lookupSetting(settings, "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "log-level", "loglevel"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		if val != "" {
			cfg.LogLevel = val
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds", "threshold"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		section, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if err := applyTracingSettings(&cfg.Tracing, section); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(cfg *tracing.Config, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if val != "" {
			cfg.Protocol = val
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		cfg.ServiceName = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		cfg.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		cfg.Propagate = val
	}
	return nil
}

// dumpConfig mirrors Config with YAML tags so --dump-config output can be
// fed back in as a config file.
// Durations are dumped in time.ParseDuration syntax, not nanoseconds.
type dumpConfig struct {
	Endpoint           string       `yaml:"endpoint"`
	Model              string       `yaml:"model"`
	Concurrency        int          `yaml:"concurrency"`
	Duration           string       `yaml:"duration"`
	MaxContextTokens   int          `yaml:"max_context_tokens"`
	MaxRPS             float64      `yaml:"max_rps,omitempty"`
	Timeout            string       `yaml:"timeout"`
	Retries            int          `yaml:"retries"`
	InsecureSkipVerify bool         `yaml:"insecure_skip_verify,omitempty"`
	HealthInterval     string       `yaml:"health_interval"`
	HealthStartupDelay string       `yaml:"health_startup_delay"`
	OutputDir          string       `yaml:"output_dir"`
	JSONOutput         bool         `yaml:"json_output,omitempty"`
	LogLevel           string       `yaml:"log_level"`
	Thresholds         []string     `yaml:"thresholds,omitempty"`
	Tracing            *dumpTracing `yaml:"tracing,omitempty"`
}

type dumpTracing struct {
	Endpoint    string  `yaml:"endpoint,omitempty"`
	Protocol    string  `yaml:"protocol,omitempty"`
	ServiceName string  `yaml:"service_name,omitempty"`
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
	Insecure    bool    `yaml:"insecure,omitempty"`
	Propagate   bool    `yaml:"propagate,omitempty"`
}

// DumpYAML renders the effective configuration. The API key is deliberately
// omitted so the output is safe to commit.
func DumpYAML(cfg *Config) (string, error) {
	d := dumpConfig{
		Endpoint:           cfg.Endpoint,
		Model:              cfg.Model,
		Concurrency:        cfg.Concurrency,
		Duration:           cfg.Duration.String(),
		MaxContextTokens:   cfg.MaxContextTokens,
		MaxRPS:             cfg.MaxRPS,
		Timeout:            cfg.Timeout.String(),
		Retries:            cfg.Retries,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		HealthInterval:     cfg.HealthInterval.String(),
		HealthStartupDelay: cfg.HealthStartupDelay.String(),
		OutputDir:          cfg.OutputDir,
		JSONOutput:         cfg.JSONOutput,
		LogLevel:           cfg.LogLevel,
		Thresholds:         cfg.Thresholds,
	}
	if cfg.Tracing.Enabled() {
		d.Tracing = &dumpTracing{
			Endpoint:    cfg.Tracing.Endpoint,
			Protocol:    cfg.Tracing.Protocol,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRate:  cfg.Tracing.SampleRate,
			Insecure:    cfg.Tracing.Insecure,
			Propagate:   cfg.Tracing.Propagate,
		}
	}
	out, err := yaml.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
