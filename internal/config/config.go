// Package config holds the typed runner configuration, populated once at
// startup from grpcheck.yaml plus environment overrides and passed by value
// into the core components.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"grpcheck/pkg/logging"
)

// DefaultFileName is the runner configuration file looked up in the working
// directory when no --config flag is given.
const DefaultFileName = "grpcheck.yaml"

// Environment variables read once at startup.
const (
	// EnvDefaultAddress overrides the configured default target address.
	EnvDefaultAddress = "GRPCHECK_ADDRESS"
	// EnvPluginDir overrides the configured verb plugin directory.
	EnvPluginDir = "GRPCHECK_PLUGIN_DIR"
)

// Duration wraps time.Duration with YAML decoding of human-readable values
// like "5s" or "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetrySettings configure the retry coordinator.
type RetrySettings struct {
	// Disabled turns retries off globally, forcing single attempts and
	// skipping the liveness probe.
	Disabled bool `yaml:"disabled"`
	// MaxAttempts bounds attempts per call, including the first.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the wait before the first retry.
	InitialDelay Duration `yaml:"initial_delay"`
	// BackoffMultiplier scales the delay after each retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// Config is the runner configuration.
type Config struct {
	// DefaultAddress is supplied to definitions without an ADDRESS section.
	DefaultAddress string `yaml:"default_address"`
	// Parallel is the worker pool size. Zero means the logical CPU count.
	Parallel int `yaml:"parallel"`
	// Timeout bounds each external client invocation.
	Timeout Duration `yaml:"timeout"`
	// ClientBinary is the external gRPC client executable.
	ClientBinary string `yaml:"client_binary"`
	// ReportPath, when set, receives the JSON suite summary.
	ReportPath string `yaml:"report_path"`
	// PluginDir is where verb plugins are discovered from.
	PluginDir string `yaml:"plugin_dir"`
	// Retry configures the retry coordinator.
	Retry RetrySettings `yaml:"retry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:      Duration(30 * time.Second),
		ClientBinary: "grpcurl",
		Retry: RetrySettings{
			MaxAttempts:       3,
			InitialDelay:      Duration(500 * time.Millisecond),
			BackoffMultiplier: 2,
		},
	}
}

// Load reads the configuration file at path, falling back to defaults when
// the file does not exist, then applies environment overrides. Environment
// is read here, once; the core never consults it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "no %s found, using defaults", path)
	case err != nil:
		return Config{}, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("loading config from %s: %w", path, err)
		}
		logging.Info("Config", "loaded configuration from %s", path)
	}

	if addr := os.Getenv(EnvDefaultAddress); addr != "" {
		cfg.DefaultAddress = addr
	}
	if dir := os.Getenv(EnvPluginDir); dir != "" {
		cfg.PluginDir = dir
	}
	return cfg, nil
}
