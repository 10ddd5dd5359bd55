package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/provider"
	vservice "github.com/vendweave-gateway/internal/verification/service"
)

// ReferenceServiceImpl implements the ReferenceService interface
type ReferenceServiceImpl struct {
	ledger vservice.ReferenceLedger
	client provider.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewReferenceService creates a reference service scoped to the provider's store
func NewReferenceService(logger *slog.Logger, ledger vservice.ReferenceLedger, client provider.Client, ttl time.Duration) ReferenceService {
	return &ReferenceServiceImpl{
		ledger: ledger,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Reserve records the reference locally, then announces it to the provider.
// The provider announcement is best effort.
func (s *ReferenceServiceImpl) Reserve(ctx context.Context, attempt shared.VerificationAttempt) (*reference.Reference, error) {
	storeID := s.client.StoreSlug()

	ref, err := s.ledger.Reserve(ctx, storeID, attempt.OrderID, attempt.Reference, s.ttl)
	if err != nil {
		s.logger.Info("Reference not reserved",
			"reference", attempt.Reference,
			"order_id", attempt.OrderID,
			"error", err,
		)
		return nil, err
	}

	_, err = s.client.ReserveReference(ctx, provider.Request{
		OrderID:       attempt.OrderID,
		Amount:        attempt.ExpectedAmount,
		PaymentMethod: shared.NormalizePaymentMethod(attempt.PaymentMethod),
		Reference:     ref.Reference,
	})
	if err != nil {
		s.logger.Warn("Provider did not acknowledge reference reservation",
			"reference", ref.Reference,
			"error", err,
		)
	}

	s.logger.Info("Reference reserved",
		"reference", ref.Reference,
		"order_id", ref.OrderID,
		"expires_at", ref.ExpiresAt,
	)
	return ref, nil
}

func (s *ReferenceServiceImpl) Cancel(ctx context.Context, code string) (*reference.Reference, error) {
	ref, err := s.ledger.Cancel(ctx, code, s.client.StoreSlug())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reference cancelled", "reference", ref.Reference, "order_id", ref.OrderID)
	return ref, nil
}

func (s *ReferenceServiceImpl) Stats(ctx context.Context) (map[reference.Status]int64, error) {
	return s.ledger.Stats(ctx)
}
