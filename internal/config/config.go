package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all schedforge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Default RNG seed for runs that do not pass one
	Seed int64 `yaml:"seed"`

	Allocator AllocatorConfig `yaml:"allocator"`
	Timing    TimingConfig    `yaml:"timing"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Followup  FollowupConfig  `yaml:"followup"`
	Validator ValidatorConfig `yaml:"validator"`

	// Certificate persistence
	Store StoreConfig `yaml:"store"`

	// Multi-creator runs
	Batch BatchConfig `yaml:"batch"`

	Logging LoggingConfig `yaml:"logging"`
}

// AllocatorConfig tunes content selection.
type AllocatorConfig struct {
	// How often one content type may appear on a single day before the
	// allocator falls through to the next tier.
	MaxContentRepeatsPerDay int `yaml:"max_content_repeats_per_day"`
}

// FollowupConfig configures followup delay sampling.
type FollowupConfig struct {
	MeanMinutes   float64 `yaml:"mean_minutes"`
	StdDevMinutes float64 `yaml:"stddev_minutes"`
	MinDelay      int     `yaml:"min_delay_minutes"`
	MaxDelay      int     `yaml:"max_delay_minutes"`
	Cutoff        string  `yaml:"cutoff"` // HH:MM, latest followup time
	DailyCap      int     `yaml:"daily_cap"`
}

// ValidatorConfig configures scoring and certificates.
type ValidatorConfig struct {
	CertificateVersion string `yaml:"certificate_version"`
	Freshness          string `yaml:"freshness"`
	// Unique send types that earn the full diversity score
	DiversityTarget int `yaml:"diversity_target"`
}

// StoreConfig configures the SQLite certificate store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// BatchConfig configures concurrent creator runs.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "schedforge",
		Version: "1.0.0",
		Seed:    1,

		Allocator: AllocatorConfig{
			MaxContentRepeatsPerDay: 3,
		},

		Timing:  defaultTimingConfig(),
		Pricing: defaultPricingConfig(),

		Followup: FollowupConfig{
			MeanMinutes:   28,
			StdDevMinutes: 8,
			MinDelay:      15,
			MaxDelay:      45,
			Cutoff:        "23:30",
			DailyCap:      5,
		},

		Validator: ValidatorConfig{
			CertificateVersion: "1.0",
			Freshness:          "5m",
			DiversityTarget:    14,
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(".schedforge", "certificates.db"),
		},

		Batch: BatchConfig{
			MaxConcurrency: 4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SCHEDFORGE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if s := os.Getenv("SCHEDFORGE_SEED"); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if lvl := os.Getenv("SCHEDFORGE_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
		c.Logging.DebugMode = true
	}
	if s := os.Getenv("SCHEDFORGE_MAX_CONCURRENCY"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			c.Batch.MaxConcurrency = n
		}
	}
}

// GetFreshness returns the certificate freshness window as a duration.
func (c *Config) GetFreshness() time.Duration {
	d, err := time.ParseDuration(c.Validator.Freshness)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// GetFollowupCutoff returns the followup cutoff as minutes after midnight.
func (c *Config) GetFollowupCutoff() int {
	m, err := parseClock(c.Followup.Cutoff)
	if err != nil {
		return 23*60 + 30
	}
	return m
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Timing.validate(); err != nil {
		return err
	}
	if err := c.Pricing.validate(); err != nil {
		return err
	}

	f := c.Followup
	if f.MinDelay <= 0 || f.MaxDelay < f.MinDelay {
		return fmt.Errorf("followup: delay bounds [%d,%d] invalid", f.MinDelay, f.MaxDelay)
	}
	if f.StdDevMinutes <= 0 {
		return fmt.Errorf("followup: stddev_minutes must be positive")
	}
	if f.DailyCap < 0 {
		return fmt.Errorf("followup: daily_cap must be >= 0")
	}
	if _, err := parseClock(f.Cutoff); err != nil {
		return fmt.Errorf("followup: cutoff: %w", err)
	}

	if c.Allocator.MaxContentRepeatsPerDay < 1 {
		return fmt.Errorf("allocator: max_content_repeats_per_day must be >= 1")
	}
	if c.Validator.DiversityTarget < 10 {
		return fmt.Errorf("validator: diversity_target must be >= 10")
	}
	if c.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("batch: max_concurrency must be >= 1")
	}
	return nil
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
