package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.Listen)
	assert.Equal(t, 4, cfg.Pool.MaxSize)
	assert.Equal(t, 1200, cfg.Pool.SessionLifetimeSeconds)
	assert.Equal(t, 60, cfg.Pool.ExpiryMarginSeconds)
	assert.Equal(t, 10, cfg.Pool.MaxAcquireAttempts)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/tokenpool.yaml")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8088", cfg.Listen)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenpool.yaml")
	data := `
listen: "0.0.0.0:9090"
api_key: "secret"
remote:
  base_url: "https://sessions.example.com"
  username: "svc-pool"
  timeout_seconds: 10
pool:
  max_size: 8
  session_lifetime_seconds: 600
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Listen)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "https://sessions.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "svc-pool", cfg.Remote.Username)
	assert.Equal(t, 8, cfg.Pool.MaxSize)
	assert.Equal(t, 600, cfg.Pool.SessionLifetimeSeconds)
	// Untouched keys keep defaults.
	assert.Equal(t, 60, cfg.Pool.ExpiryMarginSeconds)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOKENPOOL_LISTEN", "127.0.0.1:7777")
	t.Setenv("TOKENPOOL_POOL_MAX_SIZE", "16")
	t.Setenv("TOKENPOOL_RETRY_DELAY_MS", "250")
	t.Setenv("TOKENPOOL_REMOTE_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7777", cfg.Listen)
	assert.Equal(t, 16, cfg.Pool.MaxSize)
	assert.Equal(t, 250, cfg.Pool.RetryDelayMs)
	assert.Equal(t, "hunter2", cfg.Remote.Password)
}

func TestLoad_EnvOverrideInvalidIntIgnored(t *testing.T) {
	t.Setenv("TOKENPOOL_POOL_MAX_SIZE", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pool.MaxSize)
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, cfg.Pool.SessionLifetime().Seconds(), float64(cfg.Pool.SessionLifetimeSeconds))
	assert.Equal(t, cfg.Pool.RetryDelay().Milliseconds(), int64(cfg.Pool.RetryDelayMs))
}
