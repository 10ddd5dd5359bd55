package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/verification"
)

// PaymentEvent is published for every terminal verification outcome
type PaymentEvent struct {
	EventID        uuid.UUID           `json:"event_id"`
	Type           PaymentEventType    `json:"type"`
	OrderID        string              `json:"order_id"`
	ExpectedAmount decimal.Decimal     `json:"expected_amount"`
	PaymentMethod  string              `json:"payment_method"`
	Reference      string              `json:"reference,omitempty"`
	Result         verification.Result `json:"result"`
	CorrelationID  string              `json:"correlation_id,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// VerificationAttempt is what the caller asked to verify
type VerificationAttempt struct {
	OrderID        string
	ExpectedAmount decimal.Decimal
	PaymentMethod  string
	TrxID          string
	Reference      string
	CorrelationID  string
}

// NewPaymentEvent maps a result to its event. Pending results produce no event.
func NewPaymentEvent(attempt VerificationAttempt, result verification.Result, correlationID string) (*PaymentEvent, bool) {
	var eventType PaymentEventType
	switch {
	case result.IsConfirmed():
		eventType = PaymentEventVerified
	case result.IsFailed():
		eventType = PaymentEventFailed
	default:
		return nil, false
	}

	return &PaymentEvent{
		EventID:        uuid.New(),
		Type:           eventType,
		OrderID:        attempt.OrderID,
		ExpectedAmount: attempt.ExpectedAmount,
		PaymentMethod:  attempt.PaymentMethod,
		Reference:      attempt.Reference,
		Result:         result,
		CorrelationID:  correlationID,
		OccurredAt:     time.Now().UTC(),
	}, true
}
