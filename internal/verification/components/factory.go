package components

import (
	"log/slog"

	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/platform/provider"
	"github.com/vendweave-gateway/internal/verification/service"
)

// CreateVerifier builds the verification chain behind a worker pool. references and
// financials may be disabled ledgers; verification still runs without them.
func CreateVerifier(
	client provider.Client,
	references service.ReferenceLedger,
	financials service.FinancialLedger,
	logger *slog.Logger,
	cfg *config.Config,
) service.Verifier {
	normalizer := NewResponseNormalizer(DefaultFieldAliases, logger.With("component", "normalizer"))

	baseVerifier := service.NewTransactionVerifier(
		client,
		normalizer,
		references,
		financials,
		cfg.Verification,
		logger.With("component", "verifier"),
	)

	workerPoolVerifier, err := service.NewWorkerPoolVerifier(
		baseVerifier,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool verifier, falling back to base verifier", "error", err)
		return baseVerifier
	}

	logger.Info("Created worker pool verifier", "pool_size", cfg.WorkerPool.Size)
	return workerPoolVerifier
}
