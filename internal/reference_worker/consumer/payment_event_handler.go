package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vendweave-gateway/internal/domain/audit"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/messaging/producers"
)

// PaymentEventHandler turns payment events from Kafka into audit entries
type PaymentEventHandler struct {
	auditRepo audit.Repository
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewPaymentEventHandler creates a new handler. producer may be nil when no DLQ is configured.
func NewPaymentEventHandler(
	logger *slog.Logger,
	auditRepo audit.Repository,
	producer producers.DeadLetterPublisher,
) *PaymentEventHandler {
	return &PaymentEventHandler{
		auditRepo: auditRepo,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage records one payment event. Redelivered events are acknowledged without a second write.
func (h *PaymentEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.PaymentEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal payment event from Kafka message", err)
	}
	if event.EventID == uuid.Nil || event.OrderID == "" {
		return h.deadLetter(ctx, key, value, "Payment event is missing its identity", errors.New("event_id and order_id are required"))
	}

	logger := h.logger.With("event_id", event.EventID.String(), "order_id", event.OrderID)
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received payment event", "type", event.Type, "status", event.Result.Status)

	if err := h.auditRepo.Create(ctx, audit.NewEntry(&event)); err != nil {
		if errors.Is(err, audit.ErrDuplicateEntry{}) {
			logger.Info("Payment event already recorded")
			return nil
		}
		logger.Error("Failed to record payment event", "error", err)
		return fmt.Errorf("recording payment event %s failed: %w", event.EventID, err)
	}

	logger.Info("Payment event recorded")
	return nil
}

// deadLetter parks a message that can never be processed. Without a DLQ the error is
// returned so the offset is not committed.
func (h *PaymentEventHandler) deadLetter(ctx context.Context, key, value []byte, message string, cause error) error {
	h.logger.Error(message, "error", cause, "message_key", string(key))

	if h.producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", message, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}

	return fmt.Errorf("unprocessable payment event: %w", cause)
}
