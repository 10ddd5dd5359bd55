package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/gatewayctl"
	"github.com/vendweave-gateway/internal/logger"
	"github.com/vendweave-gateway/internal/platform/persistence"
	"github.com/vendweave-gateway/internal/verification/components"
)

var Version = "dev"

func main() {
	rootCmd := gatewayctl.NewRootCmd(openApp, Version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp connects to Postgres and, when configured, Redis for the FX rate cache
func openApp(ctx context.Context) (*gatewayctl.App, error) {
	cfg, err := config.LoadConfig("gatewayctl")
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	redisClient, err := persistence.NewRedisClient(ctx, log, &cfg.Redis)
	if err != nil {
		postgresDB.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	rates := components.CreateRateProvider(cfg.Financial, redisClient, log)
	ledgers := components.CreateLedgers(ctx, postgresDB, rates, cfg, log)

	return &gatewayctl.App{
		References:  ledgers.References,
		Financials:  ledgers.Financials,
		Settlements: ledgers.Settlements,
		Close: func() {
			postgresDB.Close()
			if redisClient != nil {
				_ = redisClient.Close()
			}
		},
	}, nil
}
