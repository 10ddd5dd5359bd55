package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

// ReferenceRepository implements the reference.Repository interface for PostgreSQL
type ReferenceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewReferenceRepository creates a new PostgreSQL reference repository
func NewReferenceRepository(logger *slog.Logger, db *persistence.PostgresDB) reference.Repository {
	return &ReferenceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// InsertIfAbsent relies on the partial unique index over active rows, so two
// concurrent reservations of the same code cannot both succeed.
func (r *ReferenceRepository) InsertIfAbsent(ctx context.Context, ref *reference.Reference) (bool, error) {
	query := `
		INSERT INTO payment_references (reference, order_id, store_id, status, expires_at, replay_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (store_id, reference) WHERE status IN ('RESERVED', 'MATCHED') DO NOTHING
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		ref.Reference,
		ref.OrderID,
		ref.StoreID,
		ref.Status,
		ref.ExpiresAt,
		ref.ReplayCount,
		ref.CreatedAt,
		ref.UpdatedAt,
	).Scan(&ref.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Failed to insert reference",
			"reference", ref.Reference,
			"store_id", ref.StoreID,
			"error", err,
		)
		return false, fmt.Errorf("failed to insert reference: %w", err)
	}

	return true, nil
}

// FindByReference returns the newest record carrying the code in storeID, or in any store
// when storeID is empty
func (r *ReferenceRepository) FindByReference(ctx context.Context, storeID, code string) (*reference.Reference, error) {
	query := `
		SELECT id, reference, order_id, store_id, status, expires_at, matched_at, replay_count, created_at, updated_at
		FROM payment_references
		WHERE reference = $1 AND ($2 = '' OR store_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	ref, err := scanReference(r.querier.QueryRow(ctx, query, code, storeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrReferenceNotFound{Reference: code}
		}
		r.logger.Error("Failed to get reference", "reference", code, "store_id", storeID, "error", err)
		return nil, fmt.Errorf("failed to get reference: %w", err)
	}

	return ref, nil
}

// UpdateStatus is a compare-and-swap on the status column. Losing the race
// yields reference.ErrConcurrentTransition.
func (r *ReferenceRepository) UpdateStatus(ctx context.Context, current *reference.Reference, t reference.Transition) (*reference.Reference, error) {
	query := `
		UPDATE payment_references
		SET status = $2,
		    matched_at = COALESCE($3, matched_at),
		    replay_count = replay_count + $4,
		    updated_at = $5
		WHERE id = $1 AND status = ANY($6)
		RETURNING id, reference, order_id, store_id, status, expires_at, matched_at, replay_count, created_at, updated_at
	`

	increment := 0
	if t.IncrementReplay {
		increment = 1
	}
	from := make([]string, 0, len(t.From))
	for _, s := range t.From {
		from = append(from, string(s))
	}

	updated, err := scanReference(r.querier.QueryRow(ctx, query,
		current.ID,
		t.To,
		t.MatchedAt,
		increment,
		time.Now().UTC(),
		from,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reference.ErrConcurrentTransition{Reference: current.Reference}
		}
		r.logger.Error("Failed to update reference status",
			"reference", current.Reference,
			"to", string(t.To),
			"error", err,
		)
		return nil, fmt.Errorf("failed to update reference status: %w", err)
	}

	return updated, nil
}

// BulkExpire flips overdue reservations in one statement and reports how many changed
func (r *ReferenceRepository) BulkExpire(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payment_references
		SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'RESERVED' AND expires_at <= $1
	`

	result, err := r.querier.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error("Failed to expire references", "error", err)
		return 0, fmt.Errorf("failed to expire references: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *ReferenceRepository) CountByStatus(ctx context.Context) (map[reference.Status]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM payment_references
		GROUP BY status
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count references", "error", err)
		return nil, fmt.Errorf("failed to count references: %w", err)
	}
	defer rows.Close()

	counts := make(map[reference.Status]int64, len(reference.AllStatuses))
	for _, s := range reference.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status reference.Status
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reference count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over reference counts: %w", err)
	}

	return counts, nil
}

func scanReference(row pgx.Row) (*reference.Reference, error) {
	var ref reference.Reference
	err := row.Scan(
		&ref.ID,
		&ref.Reference,
		&ref.OrderID,
		&ref.StoreID,
		&ref.Status,
		&ref.ExpiresAt,
		&ref.MatchedAt,
		&ref.ReplayCount,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
