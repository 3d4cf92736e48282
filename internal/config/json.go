package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/finvault/internal/flagx"
	"github.com/dmitrijs2005/finvault/internal/timex"
)

// JsonConfig is the on-disk form of Config. Pointer fields tell "absent"
// apart from a zero value, so a file may set only some settings.
type JsonConfig struct {
	DatabaseDriver       *string         `json:"database_driver"`
	DatabaseDSN          *string         `json:"database_dsn"`
	KDFIterations        *int            `json:"kdf_iterations"`
	SessionIdleTimeout   *timex.Duration `json:"session_idle_timeout"`
	UnlockBurst          *int            `json:"unlock_burst"`
	UnlockInterval       *timex.Duration `json:"unlock_interval"`
	DecryptFailurePolicy *string         `json:"decrypt_failure_policy"`
	LogLevel             *string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c or -config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.DatabaseDriver != nil {
		cfg.DatabaseDriver = *jc.DatabaseDriver
	}
	if jc.DatabaseDSN != nil {
		cfg.DatabaseDSN = *jc.DatabaseDSN
	}
	if jc.KDFIterations != nil {
		cfg.KDFIterations = *jc.KDFIterations
	}
	if jc.SessionIdleTimeout != nil {
		cfg.SessionIdleTimeout = jc.SessionIdleTimeout.Duration
	}
	if jc.UnlockBurst != nil {
		cfg.UnlockBurst = *jc.UnlockBurst
	}
	if jc.UnlockInterval != nil {
		cfg.UnlockInterval = jc.UnlockInterval.Duration
	}
	if jc.DecryptFailurePolicy != nil {
		cfg.DecryptFailurePolicy = *jc.DecryptFailurePolicy
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	return nil
}
