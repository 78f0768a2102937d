// Package config loads application configuration from a YAML file,
// applies environment overrides, and validates the result before the
// rest of the system sees it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/fedwire/errors"
)

const envPrefix = "FEDWIRE"

// Config is the complete application configuration.
type Config struct {
	// Domain is the instance hostname used to derive canonical
	// identifiers for locally created entities.
	Domain string `yaml:"domain"`

	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig defines the JetStream connection and the deferred
// relation stream layout.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Stream   string `yaml:"stream"`
	Subject  string `yaml:"subject"`
	Consumer string `yaml:"consumer"`
}

// FetchConfig tunes remote document retrieval.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxParallel       int           `yaml:"max_parallel"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "fedwire.db"},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Fetch: FetchConfig{
			Timeout:           15 * time.Second,
			UserAgent:         "fedwire/1.0",
			RequestsPerSecond: 5,
			Burst:             10,
			MaxParallel:       4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path on top of the defaults, applies environment
// overrides, and validates. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "read "+path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err),
				"config", "Load", "yaml decode")
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override the file
// layer without editing it.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv(envPrefix + "_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(envPrefix + "_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv(envPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + "_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(envPrefix + "_FETCH_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxParallel = n
		}
	}
}

// Validate checks the configuration is complete and coherent.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: domain", errors.ErrMissingConfig),
			"config", "Validate", "domain check")
	}
	if strings.Contains(c.Domain, "://") {
		return errors.WrapFatal(
			fmt.Errorf("%w: domain %q must be a bare hostname", errors.ErrInvalidConfig, c.Domain),
			"config", "Validate", "domain check")
	}
	if c.Database.Path == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: database.path", errors.ErrMissingConfig),
			"config", "Validate", "database check")
	}
	if c.NATS.URL == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: nats.url", errors.ErrMissingConfig),
			"config", "Validate", "nats check")
	}
	if _, err := url.Parse(c.NATS.URL); err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: nats.url %q: %w", errors.ErrInvalidConfig, c.NATS.URL, err),
			"config", "Validate", "nats check")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapFatal(
			fmt.Errorf("%w: log.level %q (must be debug, info, warn or error)", errors.ErrInvalidConfig, c.Log.Level),
			"config", "Validate", "log check")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.WrapFatal(
			fmt.Errorf("%w: log.format %q (must be text or json)", errors.ErrInvalidConfig, c.Log.Format),
			"config", "Validate", "log check")
	}
	if c.Fetch.RequestsPerSecond < 0 || c.Fetch.Burst < 0 || c.Fetch.MaxParallel < 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: fetch limits must not be negative", errors.ErrInvalidConfig),
			"config", "Validate", "fetch check")
	}
	return nil
}
