package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/platform/provider"
	vservice "github.com/vendweave-gateway/internal/verification/service"
)

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	verifier       vservice.Verifier
	client         provider.Client
	outboxRepo     outbox.Repository
	paymentMethods []string
	logger         *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	logger *slog.Logger,
	verifier vservice.Verifier,
	client provider.Client,
	outboxRepo outbox.Repository,
	paymentMethods []string,
) PaymentService {
	return &PaymentServiceImpl{
		verifier:       verifier,
		client:         client,
		outboxRepo:     outboxRepo,
		paymentMethods: paymentMethods,
		logger:         logger,
	}
}

// VerifyPayment validates the payment method, runs the verifier and records the outcome.
// Outbox and provider confirmation failures are logged; they never change the result.
func (s *PaymentServiceImpl) VerifyPayment(ctx context.Context, attempt shared.VerificationAttempt) verification.Result {
	logger := s.logger.With("order_id", attempt.OrderID, "correlation_id", attempt.CorrelationID)

	attempt.PaymentMethod = shared.NormalizePaymentMethod(attempt.PaymentMethod)
	if !shared.IsSupportedPaymentMethod(attempt.PaymentMethod, s.paymentMethods) {
		logger.Info("Unsupported payment method", "payment_method", attempt.PaymentMethod)
		return verification.Failed(verification.CodeInvalidPaymentMethod,
			fmt.Sprintf("Invalid payment method: %s. Supported: %s", attempt.PaymentMethod, strings.Join(s.paymentMethods, ", ")))
	}

	result := s.verifier.Verify(ctx, attempt)

	if err := s.recordEvent(ctx, attempt, result); err != nil {
		logger.Error("Failed to record payment event",
			"status", string(result.Status),
			"error", err,
		)
	}

	if result.IsConfirmed() && result.TrxID != "" {
		if _, err := s.client.Confirm(ctx, result.TrxID, attempt.Reference); err != nil {
			logger.Warn("Provider confirmation failed, transaction stays verified",
				"trx_id", result.TrxID,
				"error", err,
			)
		}
	}

	logger.Info("Payment verification completed",
		"status", string(result.Status),
		"error_code", result.ErrorCode,
	)

	return result
}

func (s *PaymentServiceImpl) PollingLimits() provider.PollingLimits {
	return s.client.PollingLimits()
}

// recordEvent writes terminal outcomes to the outbox; pending outcomes produce nothing
func (s *PaymentServiceImpl) recordEvent(ctx context.Context, attempt shared.VerificationAttempt, result verification.Result) error {
	event, ok := shared.NewPaymentEvent(attempt, result, attempt.CorrelationID)
	if !ok {
		return nil
	}

	message, err := outbox.NewMessage(event)
	if err != nil {
		return fmt.Errorf("failed to encode payment event: %w", err)
	}

	if err := s.outboxRepo.Create(ctx, message); err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	s.logger.Debug("Payment event queued",
		"event_id", event.EventID.String(),
		"event_type", string(event.Type),
		"order_id", event.OrderID,
	)
	return nil
}
