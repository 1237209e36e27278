package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ROUTER_CONFIG", "SERVER_ADDR", "OSRM_BASE_URL", "OSRM_PROFILE", "OSRM_TIMEOUT",
		"NOMINATIM_BASE_URL", "ROUTE_CACHE_DSN", "ROUTE_CACHE_ENABLED", "LOG_DEBUG"} {
		t.Setenv(k, "")
	}
	// Keep godotenv away from any .env in the package directory
	t.Chdir(t.TempDir())
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "driving", cfg.OSRM.Profile)
	assert.Equal(t, 10*time.Second, cfg.OSRM.Timeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "Nouveau trajet", cfg.Itinerary.DefaultName)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  addr: "0.0.0.0:9090"
osrm:
  base_url: "http://osrm.local:5000"
  profile: "cycling"
  timeout: 3s
  max_attempts: 5
nominatim:
  user_agent: "Test/1.0"
cache:
  enabled: false
itinerary:
  default_name: "Sortie vélo"
log:
  debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	assert.Equal(t, "http://osrm.local:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, "cycling", cfg.OSRM.Profile)
	assert.Equal(t, 3*time.Second, cfg.OSRM.Timeout)
	assert.Equal(t, 5, cfg.OSRM.MaxAttempts)
	assert.Equal(t, "Test/1.0", cfg.Nominatim.UserAgent)
	assert.Equal(t, 256, cfg.Nominatim.CacheSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "Sortie vélo", cfg.Itinerary.DefaultName)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadFromRouterConfigEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  addr: \"127.0.0.1:7070\"\n")
	t.Setenv("ROUTER_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", cfg.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "osrm:\n  profile: cycling\n")
	t.Setenv("OSRM_PROFILE", "foot")
	t.Setenv("OSRM_TIMEOUT", "2s")
	t.Setenv("ROUTE_CACHE_ENABLED", "false")
	t.Setenv("LOG_DEBUG", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "foot", cfg.OSRM.Profile)
	assert.Equal(t, 2*time.Second, cfg.OSRM.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad url", "osrm:\n  base_url: \"not a url\"\n"},
		{"bad profile", "osrm:\n  profile: hovercraft\n"},
		{"too many attempts", "osrm:\n  max_attempts: 11\n"},
		{"bad addr", "server:\n  addr: \"localhost\"\n"},
		{"malformed yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OSRM_TIMEOUT", "soon")

	_, err := Load("")
	assert.Error(t, err)
}
