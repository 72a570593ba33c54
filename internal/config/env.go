package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Environment variables read by a halo process.
const (
	EnvRank         = "HALO_RANK"
	EnvSize         = "HALO_SIZE"
	EnvRunID        = "HALO_RUN_ID"
	EnvRedisURL     = "REDIS_URL"
	EnvPollInterval = "HALO_POLL_INTERVAL"
	EnvKeyTTL       = "HALO_KEY_TTL"
	EnvProcs        = "HALO_PROCS"
	EnvLogLevel     = "HALO_LOG_LEVEL"
	EnvLogFormat    = "HALO_LOG_FORMAT"
	EnvMetricsFile  = "HALO_METRICS_FILE"
)

const (
	DefaultRedisURL  = "redis://localhost:6379"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultProcs is the in-process group size when HALO_PROCS is unset.
func DefaultProcs() int {
	return runtime.NumCPU()
}

// Config holds a halo process's runtime configuration loaded from environment
// variables. It is validated at startup so bad settings fail before any
// member starts.
//
// A process is one member of a multi-process group when any of HALO_RANK,
// HALO_SIZE or HALO_RUN_ID is non-empty; all three and REDIS_URL are then required.
// Otherwise it runs the whole group in-process with HALO_PROCS members.
type Config struct {
	// Rank is this member's rank (from HALO_RANK)
	Rank int

	// Size is the number of members in the group (from HALO_SIZE)
	Size int

	// RunID namespaces the run's Redis keys (from HALO_RUN_ID)
	RunID string

	// RedisURL is the Redis connection string (from REDIS_URL)
	RedisURL string

	// PollInterval bounds each blocking Redis read (from HALO_POLL_INTERVAL, optional)
	PollInterval time.Duration

	// KeyTTL expires the run's Redis keys (from HALO_KEY_TTL, optional)
	KeyTTL time.Duration

	// Procs is the in-process group size (from HALO_PROCS, default CPU count)
	Procs int

	// LogLevel and LogFormat configure logging (from HALO_LOG_LEVEL, HALO_LOG_FORMAT)
	LogLevel  string
	LogFormat string

	// MetricsFile is where rank 0 writes Prometheus metrics (from HALO_METRICS_FILE, optional)
	MetricsFile string

	distributed bool
}

// LoadConfig reads and validates configuration from environment variables.
// Returns an error if any required variable is missing or invalid.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RunID:       os.Getenv(EnvRunID),
		RedisURL:    os.Getenv(EnvRedisURL),
		LogLevel:    envOr(EnvLogLevel, DefaultLogLevel),
		LogFormat:   envOr(EnvLogFormat, DefaultLogFormat),
		MetricsFile: os.Getenv(EnvMetricsFile),
		Procs:       DefaultProcs(),
	}

	rank := os.Getenv(EnvRank)
	size := os.Getenv(EnvSize)
	cfg.distributed = rank != "" || size != "" || cfg.RunID != ""

	var err error
	if cfg.distributed {
		if cfg.Rank, err = parseInt(EnvRank, rank); err != nil {
			return nil, err
		}
		if cfg.Size, err = parseInt(EnvSize, size); err != nil {
			return nil, err
		}
		if cfg.PollInterval, err = parseDuration(EnvPollInterval); err != nil {
			return nil, err
		}
		if cfg.KeyTTL, err = parseDuration(EnvKeyTTL); err != nil {
			return nil, err
		}
	} else if v := os.Getenv(EnvProcs); v != "" {
		if cfg.Procs, err = parseInt(EnvProcs, v); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Distributed reports whether this process is one member of a multi-process
// group.
func (c *Config) Distributed() bool {
	return c.distributed
}

// GroupSize returns the number of members in the group in either mode.
func (c *Config) GroupSize() int {
	if c.distributed {
		return c.Size
	}
	return c.Procs
}

// Validate checks that all required configuration fields are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	if c.distributed {
		if c.RunID == "" {
			return fmt.Errorf("%s environment variable is required", EnvRunID)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("%s environment variable is required", EnvRedisURL)
		}
		if c.Size < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", EnvSize, c.Size)
		}
		if c.Rank < 0 || c.Rank >= c.Size {
			return fmt.Errorf("%s must be in [0, %d), got %d", EnvRank, c.Size, c.Rank)
		}
		if c.PollInterval < 0 {
			return fmt.Errorf("%s must not be negative, got %s", EnvPollInterval, c.PollInterval)
		}
		if c.KeyTTL < 0 {
			return fmt.Errorf("%s must not be negative, got %s", EnvKeyTTL, c.KeyTTL)
		}
	} else if c.Procs < 1 {
		return fmt.Errorf("%s must be >= 1, got %d", EnvProcs, c.Procs)
	}

	if err := validateLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	if err := validateLogFormat(c.LogFormat); err != nil {
		return fmt.Errorf("%s: %w", EnvLogFormat, err)
	}

	return nil
}

// MemberEnv returns the environment variables that make a child process
// member rank of the group described by c.
func (c *LaunchConfig) MemberEnv(runID string, rank, size int) []string {
	env := []string{
		fmt.Sprintf("%s=%d", EnvRank, rank),
		fmt.Sprintf("%s=%d", EnvSize, size),
		EnvRunID + "=" + runID,
		EnvRedisURL + "=" + c.Redis.URL,
		EnvPollInterval + "=" + c.Redis.PollInterval,
		EnvKeyTTL + "=" + c.Redis.KeyTTL,
		EnvLogLevel + "=" + c.Log.Level,
		EnvLogFormat + "=" + c.Log.Format,
	}
	if c.MetricsFile != "" {
		env = append(env, EnvMetricsFile+"="+c.MetricsFile)
	}
	return env
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(name, value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("%s environment variable is required", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s as an integer: %w", name, err)
	}
	return n, nil
}

// parseDuration reads an optional duration variable; unset means zero.
func parseDuration(name string) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return d, nil
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error", "none":
		return nil
	default:
		return fmt.Errorf("unknown log level %q (must be debug, info, warn, error or none)", level)
	}
}

func validateLogFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (must be 'text' or 'json')", format)
	}
}
