package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

// SettlementRepository implements the financial.SettlementRepository interface for PostgreSQL
type SettlementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSettlementRepository creates a new PostgreSQL settlement repository
func NewSettlementRepository(logger *slog.Logger, db *persistence.PostgresDB) financial.SettlementRepository {
	return &SettlementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SettlementRepository) WithTx(tx pgx.Tx) financial.SettlementRepository {
	return &SettlementRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *SettlementRepository) Create(ctx context.Context, settlement *financial.Settlement) error {
	query := `
		INSERT INTO settlements (settlement_id, store_slug, gateway, settlement_date, total_expected, total_paid, record_count, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		settlement.SettlementID,
		settlement.StoreSlug,
		settlement.Gateway,
		settlement.Date,
		settlement.TotalExpected,
		settlement.TotalPaid,
		settlement.RecordCount,
		settlement.CreatedAt,
	).Scan(&settlement.ID)
	if err != nil {
		r.logger.Error("Failed to create settlement",
			"settlement_id", settlement.SettlementID,
			"error", err,
		)
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	return nil
}

func (r *SettlementRepository) GetBySettlementID(ctx context.Context, settlementID string) (*financial.Settlement, error) {
	query := `
		SELECT id, settlement_id, COALESCE(store_slug, ''), COALESCE(gateway, ''), settlement_date,
			total_expected, total_paid, record_count, created_at
		FROM settlements
		WHERE settlement_id = $1
	`

	var settlement financial.Settlement
	err := r.querier.QueryRow(ctx, query, settlementID).Scan(
		&settlement.ID,
		&settlement.SettlementID,
		&settlement.StoreSlug,
		&settlement.Gateway,
		&settlement.Date,
		&settlement.TotalExpected,
		&settlement.TotalPaid,
		&settlement.RecordCount,
		&settlement.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, financial.ErrSettlementNotFound{SettlementID: settlementID}
		}
		r.logger.Error("Failed to get settlement", "settlement_id", settlementID, "error", err)
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	return &settlement, nil
}
