// Package config loads the tagvet configuration file. Validation
// happens at load time so a bad config fails at startup, not on the
// first tool call.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full tagvet configuration.
type Config struct {
	Version    string   `yaml:"version"`
	PolicyPath string   `yaml:"policy_path"`
	Regions    []string `yaml:"regions"`
	ScanTypes  []string `yaml:"scan_types,omitempty"`

	Budget    BudgetConfig    `yaml:"budget,omitempty"`
	Loop      LoopConfig      `yaml:"loop,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`

	ScanTimeout time.Duration `yaml:"scan_timeout,omitempty"`
	StorageDir  string        `yaml:"storage_dir,omitempty"`

	Listen       string `yaml:"listen,omitempty"`
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
}

// BudgetConfig tunes the per-session call budget.
type BudgetConfig struct {
	Ceiling int64         `yaml:"ceiling"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoopConfig tunes the repeated-call detector.
type LoopConfig struct {
	Window    time.Duration `yaml:"window"`
	Threshold int           `yaml:"threshold"`
}

// RateLimitConfig tunes outbound provider-call pacing.
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInFlight int           `yaml:"max_in_flight"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	Jitter      bool          `yaml:"jitter"`
}

// Load reads, parses, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Budget.Ceiling == 0 {
		c.Budget.Ceiling = 100
	}
	if c.Budget.TTL == 0 {
		c.Budget.TTL = time.Hour
	}
	if c.Loop.Window == 0 {
		c.Loop.Window = 5 * time.Minute
	}
	if c.Loop.Threshold == 0 {
		c.Loop.Threshold = 3
	}
	if c.RateLimit.MinInterval == 0 {
		c.RateLimit.MinInterval = 100 * time.Millisecond
	}
	if c.RateLimit.MaxInFlight == 0 {
		c.RateLimit.MaxInFlight = 5
	}
	if c.RateLimit.MaxAttempts == 0 {
		c.RateLimit.MaxAttempts = 5
	}
	if c.RateLimit.BackoffBase == 0 {
		c.RateLimit.BackoffBase = 200 * time.Millisecond
	}
	if c.ScanTimeout == 0 {
		c.ScanTimeout = 2 * time.Minute
	}
	if c.StorageDir == "" {
		c.StorageDir = "/var/lib/tagvet"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}

// Validate ensures required fields are present and tunables sane.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	if c.Budget.Ceiling < 0 {
		return fmt.Errorf("budget.ceiling must not be negative")
	}
	if c.Loop.Threshold < 2 {
		return fmt.Errorf("loop.threshold must be at least 2")
	}
	if c.RateLimit.MaxInFlight < 1 {
		return fmt.Errorf("rate_limit.max_in_flight must be at least 1")
	}
	return nil
}
