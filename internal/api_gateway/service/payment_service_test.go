package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/platform/provider"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, attempt shared.VerificationAttempt) verification.Result {
	args := m.Called(ctx, attempt)
	return args.Get(0).(verification.Result)
}

type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) Poll(ctx context.Context, req provider.Request) (*provider.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *MockProviderClient) Verify(ctx context.Context, req provider.Request) (*provider.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *MockProviderClient) Confirm(ctx context.Context, trxID, ref string) (*provider.Response, error) {
	args := m.Called(ctx, trxID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *MockProviderClient) ReserveReference(ctx context.Context, req provider.Request) (*provider.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *MockProviderClient) StoreSlug() string {
	return "dhaka-store"
}

func (m *MockProviderClient) PollingLimits() provider.PollingLimits {
	return provider.PollingLimits{Interval: 2500 * time.Millisecond, MaxRequests: 120, Timeout: 300 * time.Second}
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(_ pgx.Tx) outbox.Repository {
	return m
}

var supportedMethods = []string{"bkash", "nagad", "rocket", "upay"}

func testPaymentAttempt() shared.VerificationAttempt {
	return shared.VerificationAttempt{
		OrderID:        "ORD1",
		ExpectedAmount: decimal.RequireFromString("250.00"),
		PaymentMethod:  " bKash ",
		TrxID:          "TRX1",
		Reference:      "VW1234",
		CorrelationID:  "corr-1",
	}
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()
	confirmed := verification.Confirmed("TRX1", decimal.RequireFromString("250"), "bkash", "dhaka-store", verification.ReferenceMeta{Status: "matched"})

	normalized := func(a shared.VerificationAttempt) bool {
		return a.PaymentMethod == "bkash" && a.OrderID == "ORD1" && a.CorrelationID == "corr-1"
	}

	t.Run("ConfirmedQueuesEventAndConfirms", func(t *testing.T) {
		verifier := &MockVerifier{}
		client := &MockProviderClient{}
		outboxRepo := &MockOutboxRepository{}

		verifier.On("Verify", ctx, mock.MatchedBy(normalized)).Return(confirmed).Once()
		outboxRepo.On("Create", ctx, mock.MatchedBy(func(m *outbox.Message) bool {
			event, err := m.PaymentEvent()
			return err == nil &&
				m.EventType == shared.PaymentEventVerified &&
				m.OrderID == "ORD1" &&
				m.Status == shared.OutboxStatusPending &&
				event.CorrelationID == "corr-1" &&
				event.Result.TrxID == "TRX1"
		})).Return(nil).Once()
		client.On("Confirm", ctx, "TRX1", "VW1234").Return(&provider.Response{HTTPStatus: 200}, nil).Once()

		svc := NewPaymentService(logger, verifier, client, outboxRepo, supportedMethods)
		result := svc.VerifyPayment(ctx, testPaymentAttempt())

		assert.Equal(t, confirmed, result)
		verifier.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("FailedQueuesFailureEvent", func(t *testing.T) {
		verifier := &MockVerifier{}
		client := &MockProviderClient{}
		outboxRepo := &MockOutboxRepository{}
		failed := verification.Failed(verification.CodeAmountMismatch, "Amount mismatch: expected 250.00, received 200.00")

		verifier.On("Verify", ctx, mock.Anything).Return(failed).Once()
		outboxRepo.On("Create", ctx, mock.MatchedBy(func(m *outbox.Message) bool {
			return m.EventType == shared.PaymentEventFailed
		})).Return(nil).Once()

		svc := NewPaymentService(logger, verifier, client, outboxRepo, supportedMethods)
		result := svc.VerifyPayment(ctx, testPaymentAttempt())

		assert.Equal(t, failed, result)
		client.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PendingQueuesNothing", func(t *testing.T) {
		verifier := &MockVerifier{}
		outboxRepo := &MockOutboxRepository{}
		verifier.On("Verify", ctx, mock.Anything).Return(verification.Pending("Transaction is pending verification")).Once()

		svc := NewPaymentService(logger, verifier, &MockProviderClient{}, outboxRepo, supportedMethods)
		result := svc.VerifyPayment(ctx, testPaymentAttempt())

		assert.True(t, result.IsPending())
		outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("UnsupportedMethod", func(t *testing.T) {
		verifier := &MockVerifier{}
		outboxRepo := &MockOutboxRepository{}
		attempt := testPaymentAttempt()
		attempt.PaymentMethod = "PayPal"

		svc := NewPaymentService(logger, verifier, &MockProviderClient{}, outboxRepo, supportedMethods)
		result := svc.VerifyPayment(ctx, attempt)

		assert.Equal(t, verification.StatusFailed, result.Status)
		assert.Equal(t, verification.CodeInvalidPaymentMethod, result.ErrorCode)
		assert.Equal(t, "Invalid payment method: paypal. Supported: bkash, nagad, rocket, upay", result.ErrorMessage)
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
		outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("SideEffectFailuresKeepResult", func(t *testing.T) {
		verifier := &MockVerifier{}
		client := &MockProviderClient{}
		outboxRepo := &MockOutboxRepository{}

		verifier.On("Verify", ctx, mock.Anything).Return(confirmed).Once()
		outboxRepo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused")).Once()
		client.On("Confirm", ctx, "TRX1", "VW1234").Return(nil, &provider.ConnectionError{Message: "unable to connect to provider"}).Once()

		svc := NewPaymentService(logger, verifier, client, outboxRepo, supportedMethods)
		result := svc.VerifyPayment(ctx, testPaymentAttempt())

		assert.True(t, result.IsConfirmed())
		client.AssertExpectations(t)
	})
}

func TestPaymentService_PollingLimits(t *testing.T) {
	svc := NewPaymentService(slog.Default(), &MockVerifier{}, &MockProviderClient{}, &MockOutboxRepository{}, supportedMethods)

	limits := svc.PollingLimits()

	assert.Equal(t, 2500*time.Millisecond, limits.Interval)
	assert.Equal(t, 120, limits.MaxRequests)
}
