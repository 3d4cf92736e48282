package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"database_driver":        "pgx",
		"database_dsn":           "postgres://localhost/finvault",
		"kdf_iterations":         700000,
		"session_idle_timeout":   "30m",
		"unlock_burst":           10,
		"unlock_interval":        "2m",
		"decrypt_failure_policy": "propagate",
		"log_level":              "warn",
	})
	partial := writeTempJSON(t, dir, "partial.json", map[string]any{
		"session_idle_timeout": 0,
	})

	t.Run("loads from json", func(t *testing.T) {
		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJson(&cfg, []string{"-config", full}))

		assert.Equal(t, "pgx", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://localhost/finvault", cfg.DatabaseDSN)
		assert.Equal(t, 700_000, cfg.KDFIterations)
		assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
		assert.Equal(t, 10, cfg.UnlockBurst)
		assert.Equal(t, 2*time.Minute, cfg.UnlockInterval)
		assert.Equal(t, "propagate", cfg.DecryptFailurePolicy)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJson(&cfg, []string{"-c", partial}))

		assert.Equal(t, time.Duration(0), cfg.SessionIdleTimeout)
		assert.Equal(t, "finvault.db", cfg.DatabaseDSN)
		assert.Equal(t, 600_000, cfg.KDFIterations)
	})

	t.Run("no config flag, no changes", func(t *testing.T) {
		cfg := Config{DatabaseDSN: "vault.db", KDFIterations: 1}
		require.NoError(t, parseJson(&cfg, []string{"-d", "x.db"}))
		assert.Equal(t, Config{DatabaseDSN: "vault.db", KDFIterations: 1}, cfg)
	})

	t.Run("flags override json", func(t *testing.T) {
		cfg, err := LoadConfig([]string{"-c", full, "-v", "error", "-l", "1m"})
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.LogLevel)
		assert.Equal(t, time.Minute, cfg.SessionIdleTimeout)
		assert.Equal(t, "pgx", cfg.DatabaseDriver)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		var cfg Config
		assert.ErrorContains(t, parseJson(&cfg, []string{"-config", bad}), "parse config")
	})
}
