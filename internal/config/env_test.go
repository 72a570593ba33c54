package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv makes sure nothing from the surrounding environment leaks in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvRank, EnvSize, EnvRunID, EnvRedisURL, EnvPollInterval, EnvKeyTTL,
		EnvProcs, EnvLogLevel, EnvLogFormat, EnvMetricsFile} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_InProcessDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Distributed())
	assert.Equal(t, DefaultProcs(), cfg.Procs)
	assert.Equal(t, DefaultProcs(), cfg.GroupSize())
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
}

func TestLoadConfig_InProcessProcs(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProcs, "3")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvMetricsFile, "/tmp/halo.prom")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.GroupSize())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/halo.prom", cfg.MetricsFile)
}

func TestLoadConfig_InvalidProcs(t *testing.T) {
	for value, wantErr := range map[string]string{
		"0":    "HALO_PROCS must be >= 1, got 0",
		"-2":   "HALO_PROCS must be >= 1, got -2",
		"many": "failed to parse HALO_PROCS as an integer",
	} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
					t.Setenv(EnvProcs, value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), wantErr)
		})
	}
}

func TestLoadConfig_Member(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRank, "1")
	t.Setenv(EnvSize, "4")
	t.Setenv(EnvRunID, "run-42")
	t.Setenv(EnvRedisURL, "redis://localhost:6379")
	t.Setenv(EnvPollInterval, "250ms")
	t.Setenv(EnvKeyTTL, "10m")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Distributed())
	assert.Equal(t, 1, cfg.Rank)
	assert.Equal(t, 4, cfg.Size)
	assert.Equal(t, 4, cfg.GroupSize())
	assert.Equal(t, "run-42", cfg.RunID)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.KeyTTL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_MemberErrors(t *testing.T) {
	tests := []struct {
		name     string
		rank     string
		size     string
		runID    string
		redisURL string
		poll     string
		expected string
	}{
		{"missing rank", "", "2", "run", "redis://x", "", "HALO_RANK environment variable is required"},
		{"missing size", "0", "", "run", "redis://x", "", "HALO_SIZE environment variable is required"},
		{"missing run id", "0", "2", "", "redis://x", "", "HALO_RUN_ID environment variable is required"},
		{"missing redis url", "0", "2", "run", "", "", "REDIS_URL environment variable is required"},
		{"rank out of range", "2", "2", "run", "redis://x", "", "HALO_RANK must be in [0, 2), got 2"},
		{"bad size", "0", "zero", "run", "redis://x", "", "failed to parse HALO_SIZE"},
		{"bad poll interval", "0", "2", "run", "redis://x", "often", "failed to parse HALO_POLL_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvRank, tt.rank)
			t.Setenv(EnvSize, tt.size)
			t.Setenv(EnvRunID, tt.runID)
			t.Setenv(EnvRedisURL, tt.redisURL)
			t.Setenv(EnvPollInterval, tt.poll)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoadConfig_InvalidLogSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "chatty")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HALO_LOG_LEVEL")

	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogFormat, "yaml")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HALO_LOG_FORMAT")
}
