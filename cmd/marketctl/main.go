package main

import (
	"context"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/app"
	"marketplace-handoff/internal/config"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operator tooling for handoffs, payouts and vendor fees",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(payoutsCmd())
	rootCmd.AddCommand(feesCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

// withApp builds the wired app for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app.App, *config.Config) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a, cfg)
}
