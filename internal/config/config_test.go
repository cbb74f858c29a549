package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Workers.Count)
	assert.Equal(t, "png", cfg.Response.Type)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, 14*24*time.Hour, cfg.Geo.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Geo.LookupTimeout)
	assert.Equal(t, []string{"0.0.0.0/0", "::/0"}, cfg.Server.TrustedProxies)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9000
  debug: false
workers:
  count: 2
response:
  type: text
store:
  driver: sqlite
geo:
  lookup_timeout: 2s
`)
	t.Setenv("WORKERS", "4")
	t.Setenv("IPINFO_ACCESS_TOKEN", "tok")
	t.Setenv("GEO_CACHE_TTL", "1h")

	cfg, err := LoadConfig(path, "", []string{"-port", "9100", "-log-level", "warn"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.Server.Debug)
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Equal(t, "text", cfg.Response.Type)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tok", cfg.Geo.Token)
	assert.Equal(t, time.Hour, cfg.Geo.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Geo.LookupTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "RETURN_TYPE=TEXT\nPORT=8181\n")
	t.Setenv("PORT", "8282")
	t.Cleanup(func() { os.Unsetenv("RETURN_TYPE") })

	cfg, err := LoadConfig("", envFile, nil)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Response.Type)
	assert.Equal(t, 8282, cfg.Server.Port, "process env wins over .env")
}

func TestLoadConfigMissingFilesAreTolerated(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, ".env"), nil)
	require.NoError(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad response type", env: map[string]string{"RETURN_TYPE": "gif"}},
		{name: "bad store driver", args: []string{"-store-driver", "cassandra"}},
		{name: "postgres without dsn", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "zero workers", env: map[string]string{"WORKERS": "0"}},
		{name: "bad port", env: map[string]string{"PORT": "70000"}},
		{name: "zero lookup timeout", env: map[string]string{"GEO_LOOKUP_TIMEOUT": "0s"}},
		{name: "lock ttl below lookup timeout", env: map[string]string{"GEO_LOCK_TTL": "1s", "GEO_LOOKUP_TIMEOUT": "30s"}},
		{name: "lock ttl equal to lookup timeout", env: map[string]string{"GEO_LOCK_TTL": "3s"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("", "", tt.args)
			assert.Error(t, err)
		})
	}
}
