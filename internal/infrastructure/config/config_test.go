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

	// Server config
	assert.Equal(t, "4444", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 50, cfg.Server.BodyLimitMB)

	// Proxy config
	assert.Equal(t, "/web-driverify", cfg.Proxy.Prefix)
	assert.True(t, cfg.Proxy.ForwardEnabled)

	// Bridge config
	assert.Equal(t, 30*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, 25*time.Second, cfg.Bridge.PollWait)

	// Session config
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 16, cfg.Session.OutboxSize)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	// Should equal the defaults when no env vars are set
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"PUBLIC_URL":            "http://proxy.test:9000/",
		"PREFIX":                "wd/",
		"FORWARD_ENABLED":       "false",
		"BRIDGE_TIMEOUT":        "5s",
		"BRIDGE_POLL_WAIT":      "2s",
		"SESSION_IDLE_TIMEOUT":  "10m",
		"SESSION_REAP_INTERVAL": "30s",
		"BROWSER_CMD":           "chromium",
		"BROWSER_ARGS":          "--headless,--no-sandbox",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_ENABLED":    "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "http://proxy.test:9000", cfg.Server.BaseURL())
	assert.Equal(t, "/wd", cfg.Proxy.Prefix)
	assert.False(t, cfg.Proxy.ForwardEnabled)
	assert.Equal(t, 5*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Bridge.PollWait)
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.ReapInterval)
	assert.Equal(t, "chromium", cfg.Browser.Command)
	assert.Equal(t, []string{"--headless", "--no-sandbox"}, cfg.Browser.Args)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable duration", "BRIDGE_TIMEOUT", "soon"},
		{"root prefix", "PREFIX", "/"},
		{"zero body limit", "BODY_LIMIT_MB", "0"},
		{"zero poll wait", "BRIDGE_POLL_WAIT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestServerBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"wildcard host", ServerConfig{Host: "0.0.0.0", Port: "4444"}, "http://localhost:4444"},
		{"explicit host", ServerConfig{Host: "10.0.0.2", Port: "8080"}, "http://10.0.0.2:8080"},
		{"public url wins", ServerConfig{Host: "0.0.0.0", Port: "4444", PublicURL: "https://wd.example"}, "https://wd.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.BaseURL())
		})
	}

	assert.Equal(t, int64(50<<20), Default().Server.BodyLimit())
}

func unsetAfter(t *testing.T, keys []string) {
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestConfigFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
PORT: 5555
BRIDGE_TIMEOUT: 10s
BROWSER_CMD: chromium
BROWSER_ARGS: [--headless, --disable-gpu]
LOG_LEVEL: warn
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "error")
	unsetAfter(t, []string{"PORT", "BRIDGE_TIMEOUT", "BROWSER_CMD", "BROWSER_ARGS"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5555", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, "chromium", cfg.Browser.Command)
	assert.Equal(t, []string{"--headless", "--disable-gpu"}, cfg.Browser.Args)
	assert.Equal(t, "error", cfg.Logging.Level, "environment wins over the file")
}

func TestConfigFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
SESSION_IDLE_TIMEOUT = "5m"
RATE_LIMIT_BURST = 42
FORWARD_ENABLED = false
`), 0o644))

	applied, err := ApplyFile(path)
	unsetAfter(t, applied)
	require.NoError(t, err)
	assert.Equal(t, []string{"FORWARD_ENABLED", "RATE_LIMIT_BURST", "SESSION_IDLE_TIMEOUT"}, applied)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 42, cfg.RateLimit.Burst)
	assert.False(t, cfg.Proxy.ForwardEnabled)
}

func TestConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ApplyFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "wd.ini")
	require.NoError(t, os.WriteFile(ini, []byte("PORT=1"), 0o644))
	_, err = ApplyFile(ini)
	assert.ErrorIs(t, err, ErrInvalid)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("PORT = = 1"), 0o644))
	_, err = ApplyFile(bad)
	assert.Error(t, err)
}
