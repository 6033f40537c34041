package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kamictl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081", cfg.BaseURL)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.Equal(t, 64, cfg.MaxConnsPerHost)
	assert.Equal(t, DefaultRelayPrefix, cfg.RelayPrefix)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.ToConsole)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, `
base_url: http://yaml:9000
http_timeout: 3s
relay_prefix: fromyaml
log:
  level: debug
  to_console: false
`)
	t.Setenv("KAMISADO_BASE_URL", "http://env:7000")
	t.Setenv("LOG_TO_CONSOLE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:7000", cfg.BaseURL, "env beats yaml")
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout, "yaml beats defaults")
	assert.Equal(t, "fromyaml", cfg.RelayPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.ToConsole)
	assert.Equal(t, 64, cfg.MaxConnsPerHost)
}

func TestLoadFileFromEnv(t *testing.T) {
	t.Setenv(EnvConfigFile, writeFile(t, "redis_url: redis://cache:6379/2\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	_, err = Load(writeFile(t, "base_url: [unterminated\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	t.Setenv("KAMISADO_MAX_CONNS_PER_HOST", "lots")
	_, err = Load("")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestValidateRejectsNegative(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("KAMISADO_HTTP_TIMEOUT", "-1s")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAMISADO_HTTP_TIMEOUT")
}
