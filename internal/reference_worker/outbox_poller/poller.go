package outbox_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
	applog "github.com/vendweave-gateway/internal/logger"
	"github.com/vendweave-gateway/internal/platform/messaging/producers"
)

// Poller relays pending payment events from the outbox table
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	dlq              producers.DeadLetterPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// NewPoller creates a poller. dlq may be nil when no dead letter topic is configured.
func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		dlq:              dlq,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// ProcessPending publishes one batch and returns how many messages were published
func (p *Poller) ProcessPending(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return 0, nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	published := 0
	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "order_id", msg.OrderID)

		if err := p.publisher.Publish(ctx, msg); err != nil {
			logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", err)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for outbox message", "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				p.giveUp(ctx, logger, msg, err)
			}
			continue
		}
		published++
	}
	return published, nil
}

// giveUp marks the message FAILED_TO_PUBLISH and parks its payload on the dead letter topic
func (p *Poller) giveUp(ctx context.Context, logger *slog.Logger, msg *outbox.Message, cause error) {
	logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH", "attempts_made", msg.Attempts+1)

	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", err)
	}

	if p.dlq == nil {
		return
	}
	var event shared.PaymentEvent
	if json.Unmarshal(msg.Payload, &event) == nil && event.CorrelationID != "" {
		ctx = applog.WithCorrelationID(ctx, event.CorrelationID)
	}
	reason := fmt.Sprintf("outbox publish failed after %d attempts: %v", msg.Attempts+1, cause)
	if err := p.dlq.PublishToDLQ(ctx, msg.OrderID, msg.Payload, reason); err != nil {
		logger.Error("Failed to forward outbox message to DLQ", "error", err)
	}
}
