package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/audit"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/platform/provider"
)

// PaymentService defines the interface for payment verification
type PaymentService interface {
	// VerifyPayment checks the attempt against the provider and records an outbox event
	// for terminal outcomes. Every outcome, including validation failures, is a Result.
	VerifyPayment(ctx context.Context, attempt shared.VerificationAttempt) verification.Result

	// PollingLimits tells polling clients how often and how long to poll
	PollingLimits() provider.PollingLimits
}

// ReferenceService defines the interface for reference reservation and lifecycle queries
type ReferenceService interface {
	// Reserve claims code for the order in the configured store.
	// Returns reference.ErrActiveReferenceExists when the code is already active.
	Reserve(ctx context.Context, attempt shared.VerificationAttempt) (*reference.Reference, error)

	// Cancel aborts a RESERVED reference.
	// Returns reference.ErrNotCancellable when it already left RESERVED.
	Cancel(ctx context.Context, code string) (*reference.Reference, error)

	Stats(ctx context.Context) (map[reference.Status]int64, error)
}

// ReportService defines the interface for read-only reporting
type ReportService interface {
	FinancialStats(ctx context.Context) (map[financial.Status]int64, error)

	// Reconcile totals every gateway's payments for the order.
	// Returns financial.ErrNoOrderRecords when nothing was recorded.
	Reconcile(ctx context.Context, orderID string) (*financial.Reconciliation, error)

	// OrderEvents returns a page of audit entries and the total count for the order
	OrderEvents(ctx context.Context, orderID string, limit, offset int) ([]*audit.Entry, int64, error)

	// ResolveAmount picks the payable amount out of an order payload
	ResolveAmount(orderData map[string]interface{}) decimal.Decimal
}
