package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/provider"
)

type MockReferenceLedger struct {
	mock.Mock
}

func (m *MockReferenceLedger) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockReferenceLedger) Reserve(ctx context.Context, storeID, orderID, code string, ttl time.Duration) (*reference.Reference, error) {
	args := m.Called(ctx, storeID, orderID, code, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Reference), args.Error(1)
}

func (m *MockReferenceLedger) Match(ctx context.Context, code, storeID string, matchedAt time.Time) (*reference.Reference, error) {
	args := m.Called(ctx, code, storeID, matchedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Reference), args.Error(1)
}

func (m *MockReferenceLedger) Validate(ctx context.Context, code, orderID, storeID string) (*reference.Reference, error) {
	args := m.Called(ctx, code, orderID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Reference), args.Error(1)
}

func (m *MockReferenceLedger) Cancel(ctx context.Context, code, storeID string) (*reference.Reference, error) {
	args := m.Called(ctx, code, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reference.Reference), args.Error(1)
}

func (m *MockReferenceLedger) ExpireOverdue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReferenceLedger) Stats(ctx context.Context) (map[reference.Status]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[reference.Status]int64), args.Error(1)
}

func TestReferenceService_Reserve(t *testing.T) {
	ctx := context.Background()
	ttl := 30 * time.Minute
	attempt := shared.VerificationAttempt{
		OrderID:        "ORD1",
		ExpectedAmount: decimal.RequireFromString("250"),
		PaymentMethod:  "BKash",
		Reference:      "VW1234",
	}
	reserved := &reference.Reference{
		Reference: "VW1234",
		OrderID:   "ORD1",
		StoreID:   "dhaka-store",
		Status:    reference.StatusReserved,
		ExpiresAt: time.Now().Add(ttl),
	}

	t.Run("Success", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		client := &MockProviderClient{}
		ledger.On("Reserve", ctx, "dhaka-store", "ORD1", "VW1234", ttl).Return(reserved, nil).Once()
		client.On("ReserveReference", ctx, mock.MatchedBy(func(r provider.Request) bool {
			return r.Reference == "VW1234" && r.PaymentMethod == "bkash" && r.OrderID == "ORD1"
		})).Return(&provider.Response{HTTPStatus: 200}, nil).Once()

		svc := NewReferenceService(slog.Default(), ledger, client, ttl)
		ref, err := svc.Reserve(ctx, attempt)

		require.NoError(t, err)
		assert.Equal(t, reserved, ref)
		ledger.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("ProviderFailureStillReserves", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		client := &MockProviderClient{}
		ledger.On("Reserve", ctx, "dhaka-store", "ORD1", "VW1234", ttl).Return(reserved, nil).Once()
		client.On("ReserveReference", ctx, mock.Anything).Return(nil, provider.ErrInvalidCredentials).Once()

		svc := NewReferenceService(slog.Default(), ledger, client, ttl)
		ref, err := svc.Reserve(ctx, attempt)

		require.NoError(t, err)
		assert.Equal(t, "VW1234", ref.Reference)
	})

	t.Run("ActiveReferenceExists", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		client := &MockProviderClient{}
		ledger.On("Reserve", ctx, "dhaka-store", "ORD1", "VW1234", ttl).Return(nil, reference.ErrActiveReferenceExists).Once()

		svc := NewReferenceService(slog.Default(), ledger, client, ttl)
		ref, err := svc.Reserve(ctx, attempt)

		assert.Nil(t, ref)
		assert.ErrorIs(t, err, reference.ErrActiveReferenceExists)
		client.AssertNotCalled(t, "ReserveReference", mock.Anything, mock.Anything)
	})
}

func TestReferenceService_CancelAndStats(t *testing.T) {
	ctx := context.Background()

	t.Run("Cancel", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		cancelled := &reference.Reference{Reference: "VW1234", OrderID: "ORD1", Status: reference.StatusCancelled}
		ledger.On("Cancel", ctx, "VW1234", "dhaka-store").Return(cancelled, nil).Once()

		svc := NewReferenceService(slog.Default(), ledger, &MockProviderClient{}, time.Minute)
		ref, err := svc.Cancel(ctx, "VW1234")

		require.NoError(t, err)
		assert.Equal(t, reference.StatusCancelled, ref.Status)
	})

	t.Run("CancelNotCancellable", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		ledger.On("Cancel", ctx, "VW1234", "dhaka-store").Return(nil, reference.ErrNotCancellable).Once()

		svc := NewReferenceService(slog.Default(), ledger, &MockProviderClient{}, time.Minute)
		_, err := svc.Cancel(ctx, "VW1234")

		assert.ErrorIs(t, err, reference.ErrNotCancellable)
	})

	t.Run("Stats", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		counts := map[reference.Status]int64{reference.StatusReserved: 3, reference.StatusMatched: 1}
		ledger.On("Stats", ctx).Return(counts, nil).Once()

		svc := NewReferenceService(slog.Default(), ledger, &MockProviderClient{}, time.Minute)
		stats, err := svc.Stats(ctx)

		require.NoError(t, err)
		assert.Equal(t, counts, stats)
	})

	t.Run("StatsError", func(t *testing.T) {
		ledger := &MockReferenceLedger{}
		ledger.On("Stats", ctx).Return(nil, errors.New("db down")).Once()

		svc := NewReferenceService(slog.Default(), ledger, &MockProviderClient{}, time.Minute)
		_, err := svc.Stats(ctx)

		assert.EqualError(t, err, "db down")
	})
}
