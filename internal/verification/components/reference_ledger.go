package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/verification/service"
)

var _ service.ReferenceLedger = (*ReferenceLedgerImpl)(nil)

type ReferenceLedgerImpl struct {
	repo    reference.Repository
	enabled bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewReferenceLedger returns a ledger that is disabled when enabled is false or repo is nil
func NewReferenceLedger(repo reference.Repository, enabled bool, logger *slog.Logger) *ReferenceLedgerImpl {
	return &ReferenceLedgerImpl{
		repo:    repo,
		enabled: enabled && repo != nil,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func (l *ReferenceLedgerImpl) Enabled() bool {
	return l.enabled
}

// Reserve creates a RESERVED reference. It returns reference.ErrActiveReferenceExists when the
// store already holds a RESERVED or MATCHED record with the same code.
func (l *ReferenceLedgerImpl) Reserve(ctx context.Context, storeID, orderID, code string, ttl time.Duration) (*reference.Reference, error) {
	if !l.enabled {
		return nil, reference.ErrGovernanceDisabled
	}

	ref, err := reference.NewReference(storeID, orderID, code, ttl, l.now())
	if err != nil {
		return nil, err
	}

	inserted, err := l.repo.InsertIfAbsent(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve reference %s: %w", ref.Reference, err)
	}
	if !inserted {
		l.logger.Info("Reference already active for store", "reference", ref.Reference, "store_id", storeID)
		return nil, reference.ErrActiveReferenceExists
	}

	l.logger.Info("Reference reserved",
		"reference", ref.Reference,
		"order_id", orderID,
		"store_id", storeID,
		"expires_at", ref.ExpiresAt,
	)
	return ref, nil
}

// Match moves a RESERVED reference to MATCHED. A reference that was already matched is marked
// REPLAYED, its replay count incremented, and reference.ErrReferenceReplayed returned.
func (l *ReferenceLedgerImpl) Match(ctx context.Context, code, storeID string, matchedAt time.Time) (*reference.Reference, error) {
	if !l.enabled {
		return nil, reference.ErrGovernanceDisabled
	}
	if matchedAt.IsZero() {
		matchedAt = l.now()
	}

	current, err := l.find(ctx, code, storeID)
	if err != nil {
		return nil, err
	}
	if !current.BelongsTo(storeID) {
		l.logger.Warn("Reference match attempted from another store",
			"reference", code,
			"store_id", storeID,
			"owner_store_id", current.StoreID,
		)
		return current, reference.ErrStoreMismatch
	}

	return l.match(ctx, current, matchedAt, true)
}

func (l *ReferenceLedgerImpl) match(ctx context.Context, current *reference.Reference, matchedAt time.Time, retry bool) (*reference.Reference, error) {
	switch current.Status {
	case reference.StatusMatched, reference.StatusReplayed:
		return l.recordReplay(ctx, current)
	case reference.StatusCancelled:
		return current, reference.ErrReferenceCancelled
	case reference.StatusExpired:
		return current, reference.ErrReferenceExpired
	}

	if current.IsOverdue(l.now()) {
		expired, err := l.repo.UpdateStatus(ctx, current, reference.Transition{
			From: []reference.Status{reference.StatusReserved},
			To:   reference.StatusExpired,
		})
		if err != nil && !errors.Is(err, reference.ErrConcurrentTransition{}) {
			return nil, err
		}
		if expired != nil {
			current = expired
		}
		l.logger.Info("Reference expired before match", "reference", current.Reference, "expires_at", current.ExpiresAt)
		return current, reference.ErrReferenceExpired
	}

	matched, err := l.repo.UpdateStatus(ctx, current, reference.Transition{
		From:      []reference.Status{reference.StatusReserved},
		To:        reference.StatusMatched,
		MatchedAt: &matchedAt,
	})
	if err == nil {
		l.logger.Info("Reference matched", "reference", matched.Reference, "order_id", matched.OrderID)
		return matched, nil
	}
	if !errors.Is(err, reference.ErrConcurrentTransition{}) || !retry {
		return nil, err
	}

	// Another caller moved the record first; judge the match against its new state
	latest, err := l.repo.FindByReference(ctx, current.StoreID, current.Reference)
	if err != nil {
		return nil, err
	}
	return l.match(ctx, latest, matchedAt, false)
}

// find prefers the store's own record. When the store holds none, another store's record is
// returned so callers can report the mismatch.
func (l *ReferenceLedgerImpl) find(ctx context.Context, code, storeID string) (*reference.Reference, error) {
	current, err := l.repo.FindByReference(ctx, storeID, code)
	if storeID == "" || !errors.Is(err, reference.ErrReferenceNotFound{}) {
		return current, err
	}
	return l.repo.FindByReference(ctx, "", code)
}

func (l *ReferenceLedgerImpl) recordReplay(ctx context.Context, current *reference.Reference) (*reference.Reference, error) {
	replayed, err := l.repo.UpdateStatus(ctx, current, reference.Transition{
		From:            []reference.Status{reference.StatusMatched, reference.StatusReplayed},
		To:              reference.StatusReplayed,
		IncrementReplay: true,
	})
	if err != nil {
		return nil, err
	}

	l.logger.Warn("Reference replay detected",
		"reference", replayed.Reference,
		"order_id", replayed.OrderID,
		"replay_count", replayed.ReplayCount,
	)
	return replayed, reference.ErrReferenceReplayed
}

// Validate is a read-only check. A record owned by another order or store is reported as a
// replay with reference.ErrReferenceReplayed whatever its stored status.
func (l *ReferenceLedgerImpl) Validate(ctx context.Context, code, orderID, storeID string) (*reference.Reference, error) {
	if !l.enabled {
		return nil, reference.ErrGovernanceDisabled
	}

	current, err := l.find(ctx, code, storeID)
	if err != nil {
		return nil, err
	}

	if (orderID != "" && current.OrderID != orderID) || !current.BelongsTo(storeID) {
		l.logger.Warn("Reference reused across orders",
			"reference", code,
			"order_id", orderID,
			"owner_order_id", current.OrderID,
			"store_id", storeID,
		)
		return current, reference.ErrReferenceReplayed
	}

	return current, nil
}

// Cancel aborts a RESERVED reference
func (l *ReferenceLedgerImpl) Cancel(ctx context.Context, code, storeID string) (*reference.Reference, error) {
	if !l.enabled {
		return nil, reference.ErrGovernanceDisabled
	}

	current, err := l.find(ctx, code, storeID)
	if err != nil {
		return nil, err
	}
	if !current.BelongsTo(storeID) {
		return nil, reference.ErrStoreMismatch
	}
	if current.Status != reference.StatusReserved {
		return current, reference.ErrNotCancellable
	}

	cancelled, err := l.repo.UpdateStatus(ctx, current, reference.Transition{
		From: []reference.Status{reference.StatusReserved},
		To:   reference.StatusCancelled,
	})
	if errors.Is(err, reference.ErrConcurrentTransition{}) {
		return current, reference.ErrNotCancellable
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("Reference cancelled", "reference", cancelled.Reference, "order_id", cancelled.OrderID)
	return cancelled, nil
}

// ExpireOverdue flips every overdue RESERVED reference to EXPIRED and returns how many changed
func (l *ReferenceLedgerImpl) ExpireOverdue(ctx context.Context) (int64, error) {
	if !l.enabled {
		return 0, reference.ErrGovernanceDisabled
	}

	count, err := l.repo.BulkExpire(ctx, l.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		l.logger.Info("Expired overdue references", "count", count)
	}
	return count, nil
}

func (l *ReferenceLedgerImpl) Stats(ctx context.Context) (map[reference.Status]int64, error) {
	if !l.enabled {
		return nil, reference.ErrGovernanceDisabled
	}
	return l.repo.CountByStatus(ctx)
}
