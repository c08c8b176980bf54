package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/secure-content-auth-service/internal/config"
	"github.com/sandeepkv93/secure-content-auth-service/internal/database"
	"github.com/sandeepkv93/secure-content-auth-service/internal/di"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authd",
		Short:         "Token authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	cmd.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API and sweep scheduler", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update every table", RunE: runMigrate},
		&cobra.Command{Use: "sweep", Short: "Run one retention sweep and exit", RunE: runSweep},
	)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := observability.InitRuntime(ctx, cfg, observability.NewLogger(cfg, os.Stdout, nil))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	logger := observability.NewLogger(cfg, os.Stdout, runtime.LoggerProvider)
	slog.SetDefault(logger)

	a, cleanup, err := di.InitializeApp(cfg, logger, runtime)
	if err != nil {
		_ = runtime.Shutdown(context.Background())
		return fmt.Errorf("initialize app: %w", err)
	}
	a.OnStop(cleanup)
	logger.Info("authd starting", "env", cfg.AppEnv, "addr", cfg.HTTPAddr, "database", cfg.DatabaseDriver)
	return a.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg, os.Stdout, nil)
	db, err := database.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	logger.Info("migration complete")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg, os.Stdout, nil)
	kit, cleanup, err := di.InitializeToolkit(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = kit.Close() }()

	report, err := kit.Sweeper.RunOnce(cmd.Context())
	for _, step := range report.Steps {
		logger.Info("sweep step", "target", step.Target, "deleted", step.Deleted, "error", step.Error)
	}
	return err
}
