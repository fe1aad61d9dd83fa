// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Admission AdmissionConfig `yaml:"admission"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Features  []FeatureConfig `yaml:"feature_limits"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AdmissionConfig tunes the admission pipeline.
type AdmissionConfig struct {
	// RateWindow is the trailing window for key rate limits.
	RateWindow time.Duration `yaml:"rate_window"`

	// BcryptCost for hashing new keys. Verification reads the cost from
	// the stored hash.
	BcryptCost int `yaml:"bcrypt_cost"`

	// Recorder tunes the async outcome patcher.
	RecorderQueue   int `yaml:"recorder_queue"`
	RecorderWorkers int `yaml:"recorder_workers"`

	// DurableFeatureWindows persists feature-class windows in SQLite
	// instead of process memory. Required when running more than one
	// instance against the same database.
	DurableFeatureWindows bool `yaml:"durable_feature_windows"`
}

// TierConfig overrides one entry of the built-in tier table.
type TierConfig struct {
	Name              string `yaml:"name"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RequestsPerMonth  int64  `yaml:"requests_per_month"`
}

// FeatureConfig configures one per-end-user feature class limiter.
type FeatureConfig struct {
	Class   string        `yaml:"class"`
	PerUser int           `yaml:"per_user"`
	Window  time.Duration `yaml:"window"`
}

// RetentionConfig bounds the usage log.
type RetentionConfig struct {
	// UsageLogDays is how long completed entries are kept. Zero disables
	// pruning.
	UsageLogDays int `yaml:"usage_log_days"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file, applies environment
// overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables,
// for container deployments without a config file.
//
// Environment variables:
//
//	CODEX_SERVER_HOST       - Listen host (default: 0.0.0.0)
//	CODEX_SERVER_PORT       - Listen port (default: 8080)
//	CODEX_DATABASE_PATH     - SQLite path (default: codex.db)
//	CODEX_RATE_WINDOW       - Trailing rate window (default: 1m)
//	CODEX_LOG_LEVEL         - debug, info, warn, error (default: info)
//	CODEX_LOG_FORMAT        - json or console (default: json)
//	CODEX_METRICS_ENABLED   - Enable /metrics (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback tries the file first, then environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEX_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CODEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CODEX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CODEX_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Admission.RateWindow = d
		}
	}
	if v := os.Getenv("CODEX_BCRYPT_COST"); v != "" {
		if cost, err := strconv.Atoi(v); err == nil {
			cfg.Admission.BcryptCost = cost
		}
	}
	if v := os.Getenv("CODEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CODEX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CODEX_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CODEX_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Retention.UsageLogDays = days
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "codex.db"
	}
	if cfg.Admission.RateWindow == 0 {
		cfg.Admission.RateWindow = time.Minute
	}
	if cfg.Admission.RecorderQueue == 0 {
		cfg.Admission.RecorderQueue = 1024
	}
	if cfg.Admission.RecorderWorkers == 0 {
		cfg.Admission.RecorderWorkers = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if os.Getenv("CODEX_METRICS_ENABLED") == "" && !cfg.Metrics.Enabled {
		cfg.Metrics.Enabled = true
	}
	if len(cfg.Features) == 0 {
		cfg.Features = []FeatureConfig{
			{Class: tier.ClassTrading, PerUser: 30, Window: time.Minute},
			{Class: tier.ClassSettlements, PerUser: 10, Window: time.Minute},
			{Class: tier.ClassStaking, PerUser: 20, Window: time.Minute},
			{Class: tier.ClassGeneral, PerUser: 120, Window: time.Minute},
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Admission.RateWindow < time.Second {
		return fmt.Errorf("rate window too small: %s", cfg.Admission.RateWindow)
	}
	for _, t := range cfg.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tier with empty name")
		}
		if t.RequestsPerMinute <= 0 || t.RequestsPerMonth <= 0 {
			return fmt.Errorf("tier %q: limits must be positive", t.Name)
		}
	}
	for _, f := range cfg.Features {
		if f.Class == "" {
			return fmt.Errorf("feature limit with empty class")
		}
		if f.PerUser < 0 {
			return fmt.Errorf("feature limit %q: per_user must not be negative", f.Class)
		}
		if f.PerUser > 0 && f.Window <= 0 {
			return fmt.Errorf("feature limit %q: window must be positive", f.Class)
		}
	}
	if cfg.Retention.UsageLogDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	return nil
}

// TierTable resolves the effective tier table: config overrides merged
// over the built-in defaults.
func (c *Config) TierTable() []tier.Tier {
	table := tier.Defaults()
	for _, override := range c.Tiers {
		applied := false
		for i := range table {
			if table[i].Name == override.Name {
				table[i].RequestsPerMinute = override.RequestsPerMinute
				table[i].RequestsPerMonth = override.RequestsPerMonth
				applied = true
				break
			}
		}
		if !applied {
			table = append(table, tier.Tier{
				Name:              override.Name,
				RequestsPerMinute: override.RequestsPerMinute,
				RequestsPerMonth:  override.RequestsPerMonth,
			})
		}
	}
	return table
}

// FeatureLimits converts the configured feature classes to domain limits.
func (c *Config) FeatureLimits() []tier.FeatureLimit {
	out := make([]tier.FeatureLimit, 0, len(c.Features))
	for _, f := range c.Features {
		out = append(out, tier.FeatureLimit{
			Class:   f.Class,
			PerUser: f.PerUser,
			Window:  f.Window,
		})
	}
	return out
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
