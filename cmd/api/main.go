package main

import (
	"context"
	"errors"
	"fmt"
	"marketplace-handoff/internal/app"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/server"
	"marketplace-handoff/internal/worker"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init app", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := client.Migrate(a.DB); err != nil {
		logger.Error("migrate database", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	srv := server.NewServer(server.Services{
		Fulfillment:  a.Fulfillment,
		MarketBox:    a.MarketBox,
		Vendor:       a.Vendors,
		FeeLedger:    a.FeeLedger,
		Notification: a.Notification,
		Webhook:      a.Webhook,
	}, cfg.Auth.JWTSecret, logger)

	retrier := worker.NewPayoutRetrier(a.Payouts, cfg.Worker, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		retrier.Run(ctx)
	}()

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	logger.Info("starting HTTP server", "addr", serverAddr, "environment", cfg.Environment.Name, "payout_provider", cfg.Payout.Provider)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	<-workerDone
	logger.Info("shutdown complete")
}
