// ABOUTME: Configuration loading and parsing for tagscan
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and to fields a config file leaves empty
const (
	DefaultDriver       = "sqlite"
	DefaultMaxScans     = 100
	DefaultDedupeWindow = 10 * time.Second
	DefaultDedupeSize   = 256
)

// Config represents the complete tagscan configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Retention RetentionConfig `yaml:"retention" toml:"retention"`
	Capture   CaptureConfig   `yaml:"capture" toml:"capture"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// RetentionConfig bounds how many scans are kept on device
type RetentionConfig struct {
	MaxScans *int `yaml:"max_scans" toml:"max_scans"` // nil means DefaultMaxScans; <= 0 disables pruning
}

// CaptureConfig controls de-duplication of repeated capture submissions
type CaptureConfig struct {
	DedupeWindow time.Duration `yaml:"-" toml:"-"`
	DedupeSize   int           `yaml:"dedupe_size" toml:"dedupe_size"`

	// Raw string value for YAML/TOML unmarshaling
	DedupeWindowRaw string `yaml:"dedupe_window" toml:"dedupe_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no config file exists.
// The database lives under dataDir.
func Default(dataDir string) *Config {
	cfg := &Config{
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "scans.db")},
	}
	applyDefaults(cfg)
	return cfg
}

// MaxScans returns the effective retention cap
func (c *Config) MaxScans() int {
	if c.Retention.MaxScans == nil {
		return DefaultMaxScans
	}
	return *c.Retention.MaxScans
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDriver
	}
	if cfg.Capture.DedupeWindowRaw == "" && cfg.Capture.DedupeWindow == 0 {
		cfg.Capture.DedupeWindow = DefaultDedupeWindow
	}
	if cfg.Capture.DedupeSize == 0 {
		cfg.Capture.DedupeSize = DefaultDedupeSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}

	if c.Capture.DedupeWindow < 0 {
		return fmt.Errorf("capture.dedupe_window must not be negative")
	}
	if c.Capture.DedupeSize < 0 {
		return fmt.Errorf("capture.dedupe_size must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Capture.DedupeWindowRaw != "" {
		cfg.Capture.DedupeWindow, err = time.ParseDuration(cfg.Capture.DedupeWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_window %q: %w", cfg.Capture.DedupeWindowRaw, err)
		}
	}

	return nil
}
