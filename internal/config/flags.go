package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/finvault/internal/flagx"
)

// parseFlags overlays cfg with command-line flags:
//
//	-t string     database driver (sqlite, pgx)
//	-d string     database DSN
//	-i int        PBKDF2 iterations
//	-l duration   session idle timeout, e.g. 15m; 0 disables
//	-b int        unlock attempts per user before throttling; 0 disables
//	-r duration   interval at which one more unlock attempt is granted
//	-p string     decrypt failure policy (default, exclude, propagate)
//	-v string     log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-t", "-d", "-i", "-l", "-b", "-r", "-p", "-v"})

	fs := flag.NewFlagSet("finvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabaseDriver, "t", cfg.DatabaseDriver, "database driver")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.IntVar(&cfg.KDFIterations, "i", cfg.KDFIterations, "PBKDF2 iterations")
	fs.DurationVar(&cfg.SessionIdleTimeout, "l", cfg.SessionIdleTimeout, "session idle timeout")
	fs.IntVar(&cfg.UnlockBurst, "b", cfg.UnlockBurst, "unlock attempts before throttling")
	fs.DurationVar(&cfg.UnlockInterval, "r", cfg.UnlockInterval, "unlock attempt refill interval")
	fs.StringVar(&cfg.DecryptFailurePolicy, "p", cfg.DecryptFailurePolicy, "decrypt failure policy")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
