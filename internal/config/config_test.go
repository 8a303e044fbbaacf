package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.pwnedpasswords.com", cfg.Download.BaseURL)
	assert.Equal(t, 300, cfg.Download.Parallel)
	assert.Equal(t, 10*time.Second, cfg.Download.WaitTimeout)
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8082", cfg.Server.Port)
	assert.Equal(t, 65536, cfg.Server.CacheSize)
	assert.True(t, cfg.Server.CORS)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("HIBP_BASE_URL", "http://localhost:9090")
	t.Setenv("HIBP_PARALLEL", "8")
	t.Setenv("HIBP_WAIT_TIMEOUT", "2s")
	t.Setenv("HIBP_PORT", "9999")
	t.Setenv("HIBP_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", cfg.Download.BaseURL)
	assert.Equal(t, 8, cfg.Download.Parallel)
	assert.Equal(t, 2*time.Second, cfg.Download.WaitTimeout)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hibp.yaml")
	data := []byte(`download:
  base_url: http://mirror.internal:8080
  parallel: 16
server:
  port: "7070"
  cache_size: 128
logging:
  level: warn
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://mirror.internal:8080", cfg.Download.BaseURL)
	assert.Equal(t, 16, cfg.Download.Parallel)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 128, cfg.Server.CacheSize)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// File values fill in, defaults cover the rest.
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hibp.toml")
	data := []byte(`[download]
parallel = 4
retries = 9

[server]
host = "127.0.0.1"
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Download.Parallel)
	assert.Equal(t, 9, cfg.Download.Retries)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "8082", cfg.Server.Port)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hibp.yaml")
	data := []byte("server:\n  port: \"7070\"\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("HIBP_PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Server.Port)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hibp.ini")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()
	require.NotNil(t, cfg)
	assert.Equal(t, 300, cfg.Download.Parallel)
}
