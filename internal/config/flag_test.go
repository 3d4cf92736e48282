package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-t", "pgx", "-d", "postgres://u:p@db:5432/finvault", "-i", "900000",
				"-l", "5m", "-b", "3", "-r", "1m", "-p", "exclude", "-v", "debug",
			},
			expected: Config{
				DatabaseDriver:       "pgx",
				DatabaseDSN:          "postgres://u:p@db:5432/finvault",
				KDFIterations:        900_000,
				SessionIdleTimeout:   5 * time.Minute,
				UnlockBurst:          3,
				UnlockInterval:       time.Minute,
				DecryptFailurePolicy: "exclude",
				LogLevel:             "debug",
			},
		},
		{
			name: "unrelated flags ignored",
			args: []string{"-c", "cfg.json", "-x", "1", "-d=other.db"},
			expected: Config{
				DatabaseDriver:       "sqlite",
				DatabaseDSN:          "other.db",
				KDFIterations:        600_000,
				SessionIdleTimeout:   15 * time.Minute,
				UnlockBurst:          5,
				UnlockInterval:       30 * time.Second,
				DecryptFailurePolicy: "default",
				LogLevel:             "info",
			},
		},
		{
			name:    "bad duration",
			args:    []string{"-l", "forever"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()

			err := parseFlags(&c, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, c))
		})
	}
}
