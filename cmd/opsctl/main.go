package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pestops-bknd/internal/config"
	"pestops-bknd/internal/database"
	"pestops-bknd/internal/logger"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var rootCmd = &cobra.Command{
	Use:           "opsctl",
	Short:         "Administrative tasks for the pest-control backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `opsctl runs one-off administrative tasks against the database
configured in the environment (.env is loaded when present).`,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: loaded config, a logger and an open DB.
type env struct {
	cfg  *config.Config
	logr *logger.Logger
	db   *bun.DB
}

func openEnv() (*env, error) {
	cfg := config.Load()
	logr := logger.New(cfg)
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, logr: logr, db: db}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
	e.logr.Sync()
}
