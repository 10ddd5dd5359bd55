package reference

import (
	"context"
	"time"
)

// Transition is a conditional status change. It applies only while the
// stored status is one of From, which makes RESERVED -> MATCHED a compare-and-swap.
type Transition struct {
	From            []Status
	To              Status
	MatchedAt       *time.Time
	IncrementReplay bool
}

// Repository persists references
type Repository interface {
	// InsertIfAbsent stores ref unless an active (RESERVED or MATCHED) record with the same
	// store and code exists. It reports whether the row was inserted and fills ref.ID.
	InsertIfAbsent(ctx context.Context, ref *Reference) (bool, error)

	// FindByReference returns the most recent record for the code within storeID.
	// An empty storeID searches every store.
	FindByReference(ctx context.Context, storeID, code string) (*Reference, error)

	// UpdateStatus applies t to the stored copy of current and returns the updated record.
	// It returns ErrConcurrentTransition when the stored status is not in t.From.
	UpdateStatus(ctx context.Context, current *Reference, t Transition) (*Reference, error)

	// BulkExpire flips every RESERVED record with expires_at <= now to EXPIRED
	BulkExpire(ctx context.Context, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
