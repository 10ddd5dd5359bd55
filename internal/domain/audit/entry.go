// Package audit keeps an append-only trail of verification outcomes.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/vendweave-gateway/internal/domain/shared"
)

// Entry records one terminal verification outcome
type Entry struct {
	EventID        uuid.UUID               `json:"event_id" bson:"event_id"`
	EventType      shared.PaymentEventType `json:"event_type" bson:"event_type"`
	OrderID        string                  `json:"order_id" bson:"order_id"`
	TrxID          string                  `json:"trx_id,omitempty" bson:"trx_id,omitempty"`
	Reference      string                  `json:"reference,omitempty" bson:"reference,omitempty"`
	PaymentMethod  string                  `json:"payment_method" bson:"payment_method"`
	StoreSlug      string                  `json:"store_slug,omitempty" bson:"store_slug,omitempty"`
	ExpectedAmount string                  `json:"expected_amount" bson:"expected_amount"` // Decimal string
	ReceivedAmount string                  `json:"received_amount,omitempty" bson:"received_amount,omitempty"`
	Status         string                  `json:"status" bson:"status"`
	ErrorCode      string                  `json:"error_code,omitempty" bson:"error_code,omitempty"`
	ErrorMessage   string                  `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CorrelationID  string                  `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt     time.Time               `json:"occurred_at" bson:"occurred_at"`
	RecordedAt     time.Time               `json:"recorded_at" bson:"recorded_at"`
}

// NewEntry flattens a payment event into an audit entry
func NewEntry(event *shared.PaymentEvent) *Entry {
	entry := &Entry{
		EventID:        event.EventID,
		EventType:      event.Type,
		OrderID:        event.OrderID,
		TrxID:          event.Result.TrxID,
		Reference:      event.Reference,
		PaymentMethod:  event.PaymentMethod,
		StoreSlug:      event.Result.StoreSlug,
		ExpectedAmount: event.ExpectedAmount.StringFixed(2),
		Status:         string(event.Result.Status),
		ErrorCode:      event.Result.ErrorCode,
		ErrorMessage:   event.Result.ErrorMessage,
		CorrelationID:  event.CorrelationID,
		OccurredAt:     event.OccurredAt,
		RecordedAt:     time.Now().UTC(),
	}
	if event.Result.Amount != nil {
		entry.ReceivedAmount = event.Result.Amount.StringFixed(2)
	}
	return entry
}
