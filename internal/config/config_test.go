package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.ParallelLimit)
	assert.Equal(t, time.Hour, cfg.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.StartStagger)
	assert.Equal(t, 10*time.Second, cfg.ProgressInterval)
	assert.Equal(t, "max-total-delay", cfg.Strategy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NotContains(t, cfg.DBPath, "~")
}

func TestLoad_FileEnvAndOverrides(t *testing.T) {
	path := writeConfig(t, `
parallel_limit: 8
timeout: 15m
log_format: json
server:
  addr: "127.0.0.1:9000"
`)
	t.Setenv("RELAY_PARALLEL_LIMIT", "4")
	t.Setenv("RELAY_SERVER__ADDR", ":7000")

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ParallelLimit, "environment beats file")
	assert.Equal(t, 15*time.Minute, cfg.Timeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":7000", cfg.Server.Addr)

	cfg, err = Load(LoadOptions{Path: path, Overrides: map[string]any{"parallel_limit": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ParallelLimit, "overrides beat environment")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yml")})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"zero parallel limit", "parallel_limit: 0", "parallel_limit"},
		{"poll interval too long", "poll_interval: 2s", "poll_interval"},
		{"unknown strategy", "strategy: random", "strategy"},
		{"unknown log format", "log_format: xml", "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{Path: writeConfig(t, tt.body)})
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "parallel_limit", envTransform("RELAY_PARALLEL_LIMIT"))
	assert.Equal(t, "server.addr", envTransform("RELAY_SERVER__ADDR"))
}

func TestExpandHomePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".relay/relay.db"), expandHomePath("~/.relay/relay.db"))
	assert.Equal(t, "/tmp/x.db", expandHomePath("/tmp/x.db"))
	assert.Equal(t, ":memory:", expandHomePath(":memory:"))
}
