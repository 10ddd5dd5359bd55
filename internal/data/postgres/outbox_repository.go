package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

const outboxSelectColumns = `id, event_id, event_type, order_id, payload, status, attempts, created_at, last_attempt_at`

// OutboxRepository stores payment events awaiting relay to Kafka
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx so a payment event is written with the state change that produced it
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanOutboxMessage(row pgx.CollectableRow) (*outbox.Message, error) {
	var m outbox.Message
	err := row.Scan(&m.ID, &m.EventID, &m.EventType, &m.OrderID, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt)
	return &m, err
}

// Create inserts message and fills in its ID
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	query := `
		INSERT INTO payment_event_outbox (event_id, event_type, order_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.EventID, message.EventType, message.OrderID, message.Payload,
		message.Status, message.Attempts, message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		r.logger.Error("Failed to write payment event to outbox",
			"event_id", message.EventID.String(),
			"event_type", string(message.EventType),
			"order_id", message.OrderID,
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending returns up to limit unrelayed events, oldest first
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `SELECT ` + outboxSelectColumns + `
		FROM payment_event_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to load pending payment events", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanOutboxMessage)
	if err != nil {
		r.logger.Error("Failed to read pending payment events", "error", err)
		return nil, fmt.Errorf("failed to scan outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus moves a message to status. Returns ErrMessageNotFound if the row is gone.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE payment_event_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`
	return r.touch(ctx, id, "update outbox message status", query, status, time.Now().UTC(), id)
}

// IncrementAttempts records one failed relay attempt
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE payment_event_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`
	return r.touch(ctx, id, "increment outbox message attempts", query, time.Now().UTC(), id)
}

func (r *OutboxRepository) touch(ctx context.Context, id int64, action, query string, args ...any) error {
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+action, "id", id, "error", err)
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}
