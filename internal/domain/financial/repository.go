package financial

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrFinancialDisabled is returned when financial tracking is off
	ErrFinancialDisabled = errors.New("financial tracking is disabled")
	ErrNothingToSettle   = errors.New("no unsettled records match the filter")
	ErrEmptyReference    = errors.New("reference cannot be empty")
	ErrInvalidTransition = errors.New("record cannot transition from its current status")
	ErrNegativeExpected  = errors.New("expected amount cannot be negative")
	ErrNoOrderRecords    = errors.New("no financial records for order")
)

// Repository persists financial records
type Repository interface {
	// UpsertByReference creates the record or updates amounts, status, gateway and trx id of an
	// existing one. confirmed_at is kept unless the record becomes CONFIRMED without one.
	UpsertByReference(ctx context.Context, record *Record) (*Record, error)
	FindByReference(ctx context.Context, reference string) (*Record, error)
	UpdateStatus(ctx context.Context, reference string, status Status) (*Record, error)
	AggregateByStatus(ctx context.Context) (map[Status]int64, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Record, error)
	ListUnsettled(ctx context.Context, filter Filter) ([]*Record, error)
	AssignSettlement(ctx context.Context, ids []int64, settlementID string) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// SettlementRepository persists settlement batches
type SettlementRepository interface {
	Create(ctx context.Context, settlement *Settlement) error
	GetBySettlementID(ctx context.Context, settlementID string) (*Settlement, error)
	WithTx(tx pgx.Tx) SettlementRepository
}

// ErrRecordNotFound indicates a missing financial record
type ErrRecordNotFound struct {
	Reference string
}

func (e ErrRecordNotFound) Error() string {
	return "financial record not found: " + e.Reference
}

// Is matches any ErrRecordNotFound when the target carries no reference
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrSettlementNotFound indicates a missing settlement
type ErrSettlementNotFound struct {
	SettlementID string
}

func (e ErrSettlementNotFound) Error() string {
	return "settlement not found: " + e.SettlementID
}
