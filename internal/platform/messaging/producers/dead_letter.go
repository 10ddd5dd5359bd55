package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vendweave-gateway/internal/config"
	applog "github.com/vendweave-gateway/internal/logger"
)

// Dead letter headers
const (
	DeadLetterReasonHeader      = "dlq-reason"
	DeadLetterCorrelationHeader = "correlation-id"
)

// ErrDLQDisabled is returned when no dead letter topic is configured
var ErrDLQDisabled = errors.New("dead letter producer is disabled")

// DeadLetter is the envelope written to the dead letter topic. Payload stays raw JSON when the
// original bytes were valid JSON so an operator can replay it unchanged.
type DeadLetter struct {
	Key            string          `json:"key"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	RawPayload     string          `json:"raw_payload,omitempty"`
	Reason         string          `json:"reason"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	DeadLetteredAt time.Time       `json:"dead_lettered_at"`
}

func newDeadLetter(ctx context.Context, key string, payload []byte, reason string) DeadLetter {
	letter := DeadLetter{
		Key:            key,
		Reason:         reason,
		CorrelationID:  applog.CorrelationIDFromContext(ctx),
		DeadLetteredAt: time.Now().UTC(),
	}
	if json.Valid(payload) {
		letter.Payload = json.RawMessage(payload)
	} else {
		letter.RawPayload = string(payload)
	}
	return letter
}

// DLQProducer parks payment events that could not be relayed or recorded
type DLQProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("Dead letter topic not configured, unprocessable payment events will only be logged")
		return nil, nil
	}

	if err := ensureTopic(cfg, cfg.DLQTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure dead letter topic %s exists: %w", cfg.DLQTopic, err)
	}

	return &DLQProducer{
		logger: logger.With("topic", cfg.DLQTopic),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.MaxWait,
		},
		topic: cfg.DLQTopic,
	}, nil
}

// PublishToDLQ writes one dead letter keyed like the original message
func (p *DLQProducer) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	letter := newDeadLetter(ctx, key, originalMessageValue, reason)
	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	headers := []kafka.Header{{Key: DeadLetterReasonHeader, Value: []byte(reason)}}
	if letter.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: DeadLetterCorrelationHeader, Value: []byte(letter.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Headers: headers}); err != nil {
		p.logger.Error("Failed to dead-letter payment event", "key", key, "reason", reason, "error", err)
		return fmt.Errorf("failed to publish dead letter to %s: %w", p.topic, err)
	}

	p.logger.Warn("Payment event dead-lettered", "key", key, "reason", reason)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dead letter writer for topic %s: %w", p.topic, err)
	}
	return nil
}

var _ DeadLetterPublisher = (*DLQProducer)(nil)
