package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the launcher config looked up in the working directory.
const DefaultConfigFile = "halo.yml"

// LaunchConfig represents the top-level halo.yml configuration used by
// `halo launch`.
type LaunchConfig struct {
	Version     string       `yaml:"version"`
	Processes   *int         `yaml:"processes,omitempty"` // Members to start (default: CPU count)
	Redis       *RedisConfig `yaml:"redis,omitempty"`
	Log         *LogConfig   `yaml:"log,omitempty"`
	MetricsFile string       `yaml:"metrics_file,omitempty"` // Prometheus textfile written by rank 0
}

// RedisConfig specifies the shared Redis server members talk through
type RedisConfig struct {
	URL          string `yaml:"url"`
	PollInterval string `yaml:"poll_interval,omitempty"` // Go duration, default 1s
	KeyTTL       string `yaml:"key_ttl,omitempty"`       // Go duration, default 1h
}

// LogConfig specifies member log output
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error or none
	Format string `yaml:"format,omitempty"` // text or json
}

// Default returns the configuration used when no halo.yml exists.
func Default() *LaunchConfig {
	c := &LaunchConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *LaunchConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Processes == nil {
		n := DefaultProcs()
		c.Processes = &n
	}
	if *c.Processes < 1 {
		return fmt.Errorf("processes must be >= 1, got %d", *c.Processes)
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate checks the Redis section and applies defaults
func (r *RedisConfig) Validate() error {
	if r.URL == "" {
		r.URL = DefaultRedisURL
	}
	for _, d := range []struct {
		name  string
		value *string
		def   string
	}{
		{"redis.poll_interval", &r.PollInterval, "1s"},
		{"redis.key_ttl", &r.KeyTTL, "1h"},
	} {
		if *d.value == "" {
			*d.value = d.def
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}
	return nil
}

// Validate checks the log section and applies defaults
func (l *LogConfig) Validate() error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if err := validateLogLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := validateLogFormat(l.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

// Load reads and validates halo.yml from the specified path
func Load(path string) (*LaunchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LaunchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
