package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/messaging/producers"
)

// EventPublisher relays one outbox message to the payment event topic
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl implements EventPublisher
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.EventPublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher
func NewEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.EventPublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// Publish writes the stored payload to Kafka keyed by order id, then marks the row PROCESSED.
// A payload that no longer decodes is marked FAILED_TO_PUBLISH immediately.
func (p *EventPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	event, err := message.PaymentEvent()
	if err != nil {
		p.logger.Error("Failed to decode payment event from outbox payload",
			"outbox_id", message.ID, "order_id", message.OrderID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	if err := p.producer.PublishEvent(ctx, message.OrderID, string(message.EventType), message.Payload); err != nil {
		logger.Error("Failed to publish payment event",
			"outbox_id", message.ID, "event_id", message.EventID, "order_id", message.OrderID, "error", err,
		)
		return fmt.Errorf("failed to publish event %s: %w", message.EventID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		return fmt.Errorf("event %s published, but failed to mark outbox %d as PROCESSED: %w", message.EventID, message.ID, err)
	}

	logger.Info("Payment event published",
		"outbox_id", message.ID,
		"event_id", message.EventID,
		"event_type", message.EventType,
		"order_id", message.OrderID,
	)
	return nil
}
