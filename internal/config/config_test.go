package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8870", cfg.Server.Addr)
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	require.Equal(t, "info", cfg.Logger.Level)
	require.False(t, cfg.Enforce.StrictSubstitutes)
	require.True(t, cfg.Policy.Watch)

	loc, err := cfg.Quota.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealguard.yaml")
	data := `
server:
  addr: ":9090"
  write_timeout: 30s
enforce:
  strict_substitutes: true
quota:
  timezone: America/New_York
logger:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	require.True(t, cfg.Enforce.StrictSubstitutes)
	require.Equal(t, "json", cfg.Logger.Format)
	require.Equal(t, "America/New_York", cfg.Quota.Timezone)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEALGUARD_SERVER_ADDR", ":7070")
	t.Setenv("MEALGUARD_ENFORCE_STRICT_SUBSTITUTES", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Server.Addr)
	require.True(t, cfg.Enforce.StrictSubstitutes)
}

func TestExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }},
		{"bad timezone", func(c *Config) { c.Quota.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
