package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
)

// Verifier checks a payment attempt against the provider. It never returns an error:
// every outcome, including provider faults, is a Result.
type Verifier interface {
	Verify(ctx context.Context, attempt shared.VerificationAttempt) verification.Result
}

// AmountResolver picks the payable amount out of an arbitrary order payload
type AmountResolver interface {
	Resolve(orderData map[string]interface{}) decimal.Decimal
}

// ResponseNormalizer maps a provider payload onto canonical fields and statuses
type ResponseNormalizer interface {
	Normalize(raw interface{}, expectedMethod, storeSlug string) verification.Fields
}

// ReferenceLedger tracks the reference lifecycle. Every method returns
// reference.ErrGovernanceDisabled when governance is off.
type ReferenceLedger interface {
	Enabled() bool
	Reserve(ctx context.Context, storeID, orderID, code string, ttl time.Duration) (*reference.Reference, error)
	Match(ctx context.Context, code, storeID string, matchedAt time.Time) (*reference.Reference, error)
	Validate(ctx context.Context, code, orderID, storeID string) (*reference.Reference, error)
	Cancel(ctx context.Context, code, storeID string) (*reference.Reference, error)
	ExpireOverdue(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[reference.Status]int64, error)
}

// FinancialLedger keeps one financial record per reference. Every method returns
// financial.ErrFinancialDisabled when financial tracking is off.
type FinancialLedger interface {
	Enabled() bool
	Record(ctx context.Context, payment financial.Payment) (*financial.Record, error)
	MarkRefunded(ctx context.Context, reference string) (*financial.Record, error)
	Cancel(ctx context.Context, reference string) (*financial.Record, error)
	Stats(ctx context.Context) (map[financial.Status]int64, error)
	ReconcileOrder(ctx context.Context, orderID string) (*financial.Reconciliation, error)
}

// SettlementEngine batches unsettled financial records
type SettlementEngine interface {
	GenerateSettlement(ctx context.Context, filter financial.Filter) (*financial.Settlement, error)
}
