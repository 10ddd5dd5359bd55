// Package outbox stores payment events until the relay publishes them.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vendweave-gateway/internal/domain/shared"
)

// Message is a payment event waiting to be published
type Message struct {
	ID            int64                   `json:"id"`
	EventID       uuid.UUID               `json:"event_id"`
	EventType     shared.PaymentEventType `json:"event_type"`
	OrderID       string                  `json:"order_id"`
	Payload       json.RawMessage         `json:"payload"`
	Status        shared.OutboxStatus     `json:"status"`
	Attempts      int                     `json:"attempts"`
	CreatedAt     time.Time               `json:"created_at"`
	LastAttemptAt *time.Time              `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a payment event in a PENDING outbox message
func NewMessage(event *shared.PaymentEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:   event.EventID,
		EventType: event.Type,
		OrderID:   event.OrderID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// PaymentEvent decodes the payload
func (m *Message) PaymentEvent() (*shared.PaymentEvent, error) {
	var event shared.PaymentEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
