package components

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/data/postgres"
	"github.com/vendweave-gateway/internal/platform/fxrate"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

var (
	governanceTables = []string{"payment_references"}
	financialTables  = []string{"financial_records", "settlements"}
)

// TableChecker reports whether the tables a feature depends on exist
type TableChecker interface {
	HasTables(ctx context.Context, names ...string) (bool, error)
}

// Ledgers groups the storage-backed collaborators of the verifier
type Ledgers struct {
	References  *ReferenceLedgerImpl
	Financials  *FinancialLedgerImpl
	Settlements *SettlementEngineImpl
}

// FeatureAvailable is true when the feature is switched on and all of its tables exist.
// A failed lookup disables the feature.
func FeatureAvailable(ctx context.Context, checker TableChecker, enabled bool, feature string, logger *slog.Logger, tables ...string) bool {
	if !enabled {
		logger.Info("Feature disabled by configuration", "feature", feature)
		return false
	}

	ok, err := checker.HasTables(ctx, tables...)
	if err != nil {
		logger.Warn("Failed to check feature tables, disabling feature", "feature", feature, "error", err)
		return false
	}
	if !ok {
		logger.Warn("Feature tables missing, disabling feature", "feature", feature, "tables", tables)
		return false
	}

	return true
}

// CreateRateProvider returns the static rate table, fronted by a Redis cache when a client is given
func CreateRateProvider(cfg config.FinancialConfig, client *redis.Client, logger *slog.Logger) fxrate.Provider {
	static := fxrate.NewStaticProvider(cfg.BaseCurrency, cfg.StaticRates)
	if client == nil {
		return static
	}
	return fxrate.NewCachedProvider(logger.With("component", "fx_rates"), static, fxrate.NewRedisCache(client), cfg.RateCacheTTL)
}

// CreateLedgers builds the reference, financial and settlement ledgers on db.
// Ledgers whose feature is unavailable are built disabled.
func CreateLedgers(
	ctx context.Context,
	db *persistence.PostgresDB,
	rates fxrate.Provider,
	cfg *config.Config,
	logger *slog.Logger,
) Ledgers {
	governance := FeatureAvailable(ctx, db, cfg.Governance.Enabled, "reference_governance", logger, governanceTables...)
	financials := FeatureAvailable(ctx, db, cfg.Financial.Enabled, "financial_records", logger, financialTables...)

	referenceRepo := postgres.NewReferenceRepository(logger, db)
	recordRepo := postgres.NewFinancialRecordRepository(logger, db)
	settlementRepo := postgres.NewSettlementRepository(logger, db)

	return Ledgers{
		References:  NewReferenceLedger(referenceRepo, governance, logger.With("component", "reference_ledger")),
		Financials:  NewFinancialLedger(recordRepo, rates, cfg.Financial, financials, logger.With("component", "financial_ledger")),
		Settlements: NewSettlementEngine(db, recordRepo, settlementRepo, financials, logger.With("component", "settlement_engine")),
	}
}
