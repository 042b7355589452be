package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// RetryConfig controls reconnection behavior after a retryable failure.
type RetryConfig struct {
	// MaxRetries is the number of reconnect attempts after the first.
	// Default: 3 (so up to 4 attempts total).
	MaxRetries int `yaml:"max_retries"`

	// InitialDelayMs is the backoff delay before the second attempt.
	// Default: 100.
	InitialDelayMs int `yaml:"initial_delay_ms"`

	// MaxDelayMs caps the backoff delay. Default: 5000.
	MaxDelayMs int `yaml:"max_delay_ms"`

	// BackoffMultiplier grows the delay between attempts. Default: 2.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// Config holds configuration for the Store.
type Config struct {
	// Database is the store database name used for all collections.
	Database string `yaml:"database"`

	// Debug enables per-operation telemetry logging (action, elapsed time,
	// arguments, outcome). Off by default; argument values are only ever
	// logged when Debug is set.
	Debug bool `yaml:"debug"`

	// DisableCache turns off read caching even when a cache is configured.
	DisableCache bool `yaml:"disable_cache"`

	// DisableTransactions makes WithTransaction fail fast.
	DisableTransactions bool `yaml:"disable_transactions"`

	// Retry configures reconnection backoff.
	Retry RetryConfig `yaml:"retry"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Database: "lattice",
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialDelayMs:    100,
			MaxDelayMs:        5000,
			BackoffMultiplier: 2,
		},
	}
}

// LoadConfig reads a yaml configuration file. Omitted fields keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.validate()
	return cfg, nil
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Database == "" {
		c.Database = "lattice"
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.InitialDelayMs <= 0 {
		c.Retry.InitialDelayMs = 100
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 5000
	}
	if c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		c.Retry.MaxDelayMs = c.Retry.InitialDelayMs
	}
	if c.Retry.BackoffMultiplier < 1 {
		c.Retry.BackoffMultiplier = 2
	}
}

// initialDelay returns the configured initial backoff as a duration.
func (r RetryConfig) initialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// maxDelay returns the configured backoff cap as a duration.
func (r RetryConfig) maxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}
