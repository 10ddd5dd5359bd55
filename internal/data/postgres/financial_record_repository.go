package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

const financialRecordColumns = `id, reference, order_id, COALESCE(store_slug, ''), amount_expected, amount_paid, currency, base_currency,
		exchange_rate, normalized_amount, status, COALESCE(gateway, ''), trx_id, settlement_id, ledger_exported,
		confirmed_at, created_at, updated_at`

// FinancialRecordRepository implements the financial.Repository interface for PostgreSQL
type FinancialRecordRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewFinancialRecordRepository creates a new PostgreSQL financial record repository
func NewFinancialRecordRepository(logger *slog.Logger, db *persistence.PostgresDB) financial.Repository {
	return &FinancialRecordRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *FinancialRecordRepository) WithTx(tx pgx.Tx) financial.Repository {
	return &FinancialRecordRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// UpsertByReference writes one row per reference. A repeated confirmation refreshes
// amounts and status but never moves confirmed_at.
func (r *FinancialRecordRepository) UpsertByReference(ctx context.Context, record *financial.Record) (*financial.Record, error) {
	query := `
		INSERT INTO financial_records (reference, order_id, store_slug, amount_expected, amount_paid, currency, base_currency,
			exchange_rate, normalized_amount, status, gateway, trx_id, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $14)
		ON CONFLICT (reference) DO UPDATE SET
			amount_expected = EXCLUDED.amount_expected,
			amount_paid = EXCLUDED.amount_paid,
			currency = EXCLUDED.currency,
			base_currency = EXCLUDED.base_currency,
			exchange_rate = EXCLUDED.exchange_rate,
			normalized_amount = EXCLUDED.normalized_amount,
			status = EXCLUDED.status,
			store_slug = COALESCE(EXCLUDED.store_slug, financial_records.store_slug),
			gateway = COALESCE(EXCLUDED.gateway, financial_records.gateway),
			trx_id = COALESCE(EXCLUDED.trx_id, financial_records.trx_id),
			confirmed_at = COALESCE(financial_records.confirmed_at, EXCLUDED.confirmed_at),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + financialRecordColumns

	stored, err := scanFinancialRecord(r.querier.QueryRow(ctx, query,
		record.Reference,
		record.OrderID,
		record.StoreSlug,
		record.AmountExpected,
		record.AmountPaid,
		record.Currency,
		record.BaseCurrency,
		record.ExchangeRate,
		record.NormalizedAmount,
		record.Status,
		record.Gateway,
		record.TrxID,
		record.ConfirmedAt,
		time.Now().UTC(),
	))
	if err != nil {
		r.logger.Error("Failed to upsert financial record",
			"reference", record.Reference,
			"order_id", record.OrderID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to upsert financial record: %w", err)
	}

	return stored, nil
}

func (r *FinancialRecordRepository) FindByReference(ctx context.Context, reference string) (*financial.Record, error) {
	query := `
		SELECT ` + financialRecordColumns + `
		FROM financial_records
		WHERE reference = $1
	`

	record, err := scanFinancialRecord(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, financial.ErrRecordNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get financial record", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get financial record: %w", err)
	}

	return record, nil
}

// UpdateStatus overwrites the status. Callers check that the transition is allowed.
func (r *FinancialRecordRepository) UpdateStatus(ctx context.Context, reference string, status financial.Status) (*financial.Record, error) {
	query := `
		UPDATE financial_records
		SET status = $2, updated_at = $3
		WHERE reference = $1
		RETURNING ` + financialRecordColumns

	record, err := scanFinancialRecord(r.querier.QueryRow(ctx, query, reference, status, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, financial.ErrRecordNotFound{Reference: reference}
		}
		r.logger.Error("Failed to update financial record status",
			"reference", reference,
			"status", string(status),
			"error", err,
		)
		return nil, fmt.Errorf("failed to update financial record status: %w", err)
	}

	return record, nil
}

func (r *FinancialRecordRepository) AggregateByStatus(ctx context.Context) (map[financial.Status]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM financial_records
		GROUP BY status
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to aggregate financial records", "error", err)
		return nil, fmt.Errorf("failed to aggregate financial records: %w", err)
	}
	defer rows.Close()

	counts := make(map[financial.Status]int64)
	for rows.Next() {
		var (
			status financial.Status
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan financial record count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over financial record counts: %w", err)
	}

	return counts, nil
}

func (r *FinancialRecordRepository) ListByOrder(ctx context.Context, orderID string) ([]*financial.Record, error) {
	query := `
		SELECT ` + financialRecordColumns + `
		FROM financial_records
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	records, err := r.list(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list financial records by order", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to list financial records by order: %w", err)
	}
	return records, nil
}

// ListUnsettled returns settleable records with no settlement, narrowed by the filter
func (r *FinancialRecordRepository) ListUnsettled(ctx context.Context, filter financial.Filter) ([]*financial.Record, error) {
	statuses := make([]string, 0, len(financial.SettleableStatuses))
	for _, s := range financial.SettleableStatuses {
		statuses = append(statuses, string(s))
	}

	conditions := []string{"settlement_id IS NULL", "status = ANY($1)"}
	args := []interface{}{statuses}

	if filter.StoreSlug != "" {
		args = append(args, filter.StoreSlug)
		conditions = append(conditions, fmt.Sprintf("store_slug = $%d", len(args)))
	}
	if filter.Gateway != "" {
		args = append(args, filter.Gateway)
		conditions = append(conditions, fmt.Sprintf("gateway = $%d", len(args)))
	}
	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, day, day.AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d AND created_at < $%d", len(args)-1, len(args)))
	}

	query := `
		SELECT ` + financialRecordColumns + `
		FROM financial_records
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at ASC, id ASC
	`

	records, err := r.list(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list unsettled financial records",
			"store_slug", filter.StoreSlug,
			"gateway", filter.Gateway,
			"error", err,
		)
		return nil, fmt.Errorf("failed to list unsettled financial records: %w", err)
	}
	return records, nil
}

// AssignSettlement stamps the settlement on records that do not carry one yet
func (r *FinancialRecordRepository) AssignSettlement(ctx context.Context, ids []int64, settlementID string) (int64, error) {
	query := `
		UPDATE financial_records
		SET settlement_id = $1, updated_at = $2
		WHERE id = ANY($3) AND settlement_id IS NULL
	`

	result, err := r.querier.Exec(ctx, query, settlementID, time.Now().UTC(), ids)
	if err != nil {
		r.logger.Error("Failed to assign settlement",
			"settlement_id", settlementID,
			"records", len(ids),
			"error", err,
		)
		return 0, fmt.Errorf("failed to assign settlement: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *FinancialRecordRepository) list(ctx context.Context, query string, args ...interface{}) ([]*financial.Record, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*financial.Record
	for rows.Next() {
		record, err := scanFinancialRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func scanFinancialRecord(row pgx.Row) (*financial.Record, error) {
	var record financial.Record
	err := row.Scan(
		&record.ID,
		&record.Reference,
		&record.OrderID,
		&record.StoreSlug,
		&record.AmountExpected,
		&record.AmountPaid,
		&record.Currency,
		&record.BaseCurrency,
		&record.ExchangeRate,
		&record.NormalizedAmount,
		&record.Status,
		&record.Gateway,
		&record.TrxID,
		&record.SettlementID,
		&record.LedgerExported,
		&record.ConfirmedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
