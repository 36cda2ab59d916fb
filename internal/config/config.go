// Package config loads clientpulse settings from ~/.clientpulse/config.yaml
// and overlays CLIENTPULSE_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/telemetry"
	"github.com/existflow/clientpulse/internal/txn"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CLIENTPULSE"

// Config holds all settings
type Config struct {
	Server    ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Store     StoreConfig      `yaml:"store" envconfig:"STORE"`
	Retry     RetryConfig      `yaml:"retry" envconfig:"RETRY"`
	Reconcile ReconcileConfig  `yaml:"reconcile" envconfig:"RECONCILE"`
	Telemetry telemetry.Config `yaml:"telemetry" envconfig:"TELEMETRY"`
	Log       LogConfig        `yaml:"log" envconfig:"LOG"`
}

// ServerConfig configures the HTTP boundary
type ServerConfig struct {
	Addr        string        `yaml:"addr" envconfig:"ADDR"`
	SessionTTL  time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	CORSOrigins []string      `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// StoreConfig selects the backing database. Driver is one of postgres,
// sqlite, libsql or mongodb; Database names the Mongo database
type StoreConfig struct {
	Driver   string `yaml:"driver" envconfig:"DRIVER"`
	DSN      string `yaml:"dsn" envconfig:"DSN"`
	Database string `yaml:"database" envconfig:"DATABASE"`
}

// RetryConfig bounds conflict retries of a unit of work
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	InitialInterval time.Duration `yaml:"initial_interval" envconfig:"INITIAL_INTERVAL"`
	MaxInterval     time.Duration `yaml:"max_interval" envconfig:"MAX_INTERVAL"`
}

// ReconcileConfig drives the background counter reconciler
type ReconcileConfig struct {
	Enabled     bool          `yaml:"enabled" envconfig:"ENABLED"`
	Interval    time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL"` // DEBUG, INFO, WARN, ERROR
	Format  string `yaml:"format" envconfig:"FORMAT"`
	File    string `yaml:"file" envconfig:"FILE"`
	Console bool   `yaml:"console" envconfig:"CONSOLE"`
}

// Dir returns ~/.clientpulse
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".clientpulse"
	}
	return filepath.Join(home, ".clientpulse")
}

// Path returns the config file location, honouring CLIENTPULSE_CONFIG
func Path() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: 30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			DSN:      filepath.Join(dir, "clientpulse.db"),
			Database: "clientpulse",
		},
		Retry: RetryConfig{
			MaxAttempts:     4,
			InitialInterval: 25 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			Enabled:     false,
			Interval:    15 * time.Minute,
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:   "INFO",
			Format:  logger.FormatText,
			File:    filepath.Join(dir, "logs", "clientpulse.log"),
			Console: true,
		},
	}
}

// Load reads the config file at Path and applies environment overrides
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path, falling back to defaults when it does not exist,
// then applies environment overrides
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot run with
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite", "libsql", "mongodb":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	switch c.Log.Format {
	case logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// Save writes the config to Path
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path as YAML
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

// LoggerConfig translates the log section for logger.Init
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(c.Log.Level)
	lc.Format = c.Log.Format
	lc.FilePath = c.Log.File
	lc.Console = c.Log.Console
	return lc
}

// RetryPolicy translates the retry section for the coordinator
func (c *Config) RetryPolicy() txn.Policy {
	return txn.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
}
