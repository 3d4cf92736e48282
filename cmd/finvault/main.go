package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/finvault/internal/buildinfo"
	"github.com/dmitrijs2005/finvault/internal/cli"
	"github.com/dmitrijs2005/finvault/internal/config"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/finvault/internal/vault"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewJSON(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Error(ctx, "database unavailable", "driver", cfg.DatabaseDriver, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	v := vault.New(db, rm,
		vault.WithKDFIterations(cfg.KDFIterations),
		vault.WithIdleTimeout(cfg.SessionIdleTimeout),
		vault.WithUnlockLimit(cfg.UnlockInterval, cfg.UnlockBurst),
		vault.WithDecryptPolicy(cfg.Policy()),
		vault.WithLogger(logger),
	)

	cli.NewApp(v, os.Stdin, os.Stdout).Run(ctx)
}
