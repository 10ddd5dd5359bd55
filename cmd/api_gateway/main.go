package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vendweave-gateway/internal/api_gateway"
	"github.com/vendweave-gateway/internal/api_gateway/middleware"
	"github.com/vendweave-gateway/internal/api_gateway/service"
	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/data/mongo"
	"github.com/vendweave-gateway/internal/data/postgres"
	"github.com/vendweave-gateway/internal/logger"
	"github.com/vendweave-gateway/internal/platform/persistence"
	"github.com/vendweave-gateway/internal/platform/provider"
	"github.com/vendweave-gateway/internal/verification/components"
	vservice "github.com/vendweave-gateway/internal/verification/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateProvider(); err != nil {
		fmt.Printf("Invalid provider configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	if err := persistence.RunMigrations(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("Failed to apply database migrations", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Redis backs the FX rate cache and the poll limiter; both fall back to memory without it
	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewVerificationAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure audit indexes", "error", err)
		os.Exit(1)
	}

	// Initialize verification chain
	providerClient := provider.NewHTTPClient(log, &cfg.Provider, &cfg.Polling)
	rates := components.CreateRateProvider(cfg.Financial, redisClient, log)
	ledgers := components.CreateLedgers(appCtx, postgresDB, rates, cfg, log)
	verifier := components.CreateVerifier(providerClient, ledgers.References, ledgers.Financials, log, cfg)
	resolver := components.NewAmountResolver(cfg.Verification.AmountPrimaryFields, cfg.Verification.AmountSecondaryFields, log)

	// Initialize services
	paymentService := service.NewPaymentService(log, verifier, providerClient, outboxRepo, cfg.Verification.PaymentMethods)
	referenceService := service.NewReferenceService(log, ledgers.References, providerClient, cfg.Governance.ReferenceTTL)
	reportService := service.NewReportService(ledgers.Financials, auditRepo, resolver)

	pollLimiter, err := middleware.NewLimiter(cfg.RateLimit.Poll, redisClient)
	if err != nil {
		log.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, paymentService, referenceService, reportService, pollLimiter)
	log.Info("REST server initialized",
		"reference_governance", ledgers.References.Enabled(),
		"financial_records", ledgers.Financials.Enabled(),
	)

	// Create error channel for server errors
	errChan := make(chan error, 1)

	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores they use go away
	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	if pooled, ok := verifier.(*vservice.WorkerPoolVerifier); ok {
		pooled.Shutdown()
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
			shutdownErr = err
		}
	}

	if serverErr != nil || shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
