package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"live-trader/internal/logger"
	"live-trader/internal/store"
)

// initializeSystem loads .env and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func configPath() string {
	if v := os.Getenv("TRADER_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig(configPath())
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath())
		return nil, err
	}
	logger.Info(ctx, "Config loaded",
		"path", configPath(),
		"mode", cfg.Mode,
		"universe", cfg.Universe,
		"cadence", cfg.Ledger.Cadence,
	)
	return cfg, nil
}
