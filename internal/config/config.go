package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	// LogPath overrides the platform default chat log location.
	LogPath string `yaml:"log_path,omitempty"`

	// PollInterval is the cadence of the watch loop. Must be positive.
	PollInterval time.Duration `yaml:"poll_interval"`

	// StartAtBeginning replays the whole file on first read instead of
	// seeking to the end.
	StartAtBeginning bool `yaml:"start_at_beginning"`

	// CheckpointPath, when set, persists the file position across runs.
	CheckpointPath string `yaml:"checkpoint_path,omitempty"`

	// Patterns are extra badge-count extraction rules, tried before the
	// built-in ones. Each must be a regexp with one numeric capture group.
	Patterns []string `yaml:"patterns,omitempty"`

	Notify  NotifyConfig   `yaml:"notify"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// NotifyConfig defines how badge events are surfaced
type NotifyConfig struct {
	Toast         bool          `yaml:"toast"`
	Sound         bool          `yaml:"sound"`
	OnReset       bool          `yaml:"on_reset"`
	ToastDuration time.Duration `yaml:"toast_duration"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path,omitempty"`
}

// Default values
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultToastDuration = 5 * time.Second
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultMetricsPath   = "/metrics"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		Notify: NotifyConfig{
			Toast:         true,
			Sound:         true,
			OnReset:       true,
			ToastDuration: DefaultToastDuration,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load loads configuration from a YAML file with environment variable
// overrides. Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in values that unmarshalling may have zeroed
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Metrics != nil && c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.Notify.ToastDuration <= 0 {
		return fmt.Errorf("toast duration must be positive, got %v", c.Notify.ToastDuration)
	}
	for i, p := range c.Patterns {
		if p == "" {
			return fmt.Errorf("pattern %d is empty", i)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics enabled but no address configured")
	}

	return nil
}

// ResolveLogPath returns the configured log path, falling back to the
// platform default Teams log location. An indeterminable default with
// no override is a startup failure.
func (c *Config) ResolveLogPath() (string, error) {
	if c.LogPath != "" {
		return c.LogPath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no log path configured and no user config directory available: %w", err)
	}
	return filepath.Join(dir, "Microsoft", "Teams", "logs.txt"), nil
}
