// Package config loads finvault settings: defaults, then an optional JSON
// file given with -c/-config, then command-line flags. Later stages win.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
)

// Config holds runtime settings.
//
// Fields:
//   - DatabaseDriver: "sqlite" or "pgx".
//   - DatabaseDSN: file path for sqlite, connection URL for pgx.
//   - KDFIterations: PBKDF2 work factor for new keys and password changes.
//   - SessionIdleTimeout: unlocked users are locked after this much
//     inactivity; zero disables auto-lock.
//   - UnlockBurst / UnlockInterval: password checks allowed per user before
//     throttling, and how often one more is granted; a burst of 0 disables.
//   - DecryptFailurePolicy: "default", "exclude" or "propagate".
//   - LogLevel: "debug", "info", "warn" or "error".
type Config struct {
	DatabaseDriver       string
	DatabaseDSN          string
	KDFIterations        int
	SessionIdleTimeout   time.Duration
	UnlockBurst          int
	UnlockInterval       time.Duration
	DecryptFailurePolicy string
	LogLevel             string
}

func (c *Config) LoadDefaults() {
	c.DatabaseDriver = repomanager.DriverSQLite
	c.DatabaseDSN = "finvault.db"
	c.KDFIterations = cryptox.DefaultKDFIterations
	c.SessionIdleTimeout = 15 * time.Minute
	c.UnlockBurst = 5
	c.UnlockInterval = 30 * time.Second
	c.DecryptFailurePolicy = fieldcrypt.PolicyDefault.String()
	c.LogLevel = "info"
}

// Validate rejects settings that would weaken key derivation or that name
// an unknown driver, policy or log level.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case repomanager.DriverSQLite, repomanager.DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database dsn is empty")
	}
	if c.KDFIterations < cryptox.MinKDFIterations {
		return fmt.Errorf("kdf iterations %d below minimum %d", c.KDFIterations, cryptox.MinKDFIterations)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("negative session idle timeout %s", c.SessionIdleTimeout)
	}
	if c.UnlockBurst < 0 || (c.UnlockBurst > 0 && c.UnlockInterval <= 0) {
		return fmt.Errorf("invalid unlock limit: burst %d, interval %s", c.UnlockBurst, c.UnlockInterval)
	}
	if _, err := fieldcrypt.ParsePolicy(c.DecryptFailurePolicy); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed DecryptFailurePolicy. Call Validate first.
func (c *Config) Policy() fieldcrypt.Policy {
	p, _ := fieldcrypt.ParsePolicy(c.DecryptFailurePolicy)
	return p
}

// LoadConfig builds a validated Config from args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
