package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopify-order-sync/internal/app"
	"shopify-order-sync/internal/config"
	"shopify-order-sync/internal/logger"

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

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Dir != "" {
		if err := logger.AddFileLogger(cfg.Log.Dir); err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to open log file")
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialise app")
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		logger.Logger.Info().Msg("Signal received, starting graceful shutdown...")
		cancel()
	}()

	if err := a.Serve(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
