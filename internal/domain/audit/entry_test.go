package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
)

func TestNewEntry(t *testing.T) {
	attempt := shared.VerificationAttempt{
		OrderID:        "ORD1",
		ExpectedAmount: decimal.RequireFromString("100"),
		PaymentMethod:  "nagad",
	}

	t.Run("Confirmed", func(t *testing.T) {
		result := verification.Confirmed("TRX1", decimal.RequireFromString("100.004"), "nagad", "dhaka-store", verification.ReferenceMeta{})
		event, ok := shared.NewPaymentEvent(attempt, result, "corr-9")
		require.True(t, ok)

		entry := NewEntry(event)
		assert.Equal(t, event.EventID, entry.EventID)
		assert.Equal(t, shared.PaymentEventVerified, entry.EventType)
		assert.Equal(t, "100.00", entry.ExpectedAmount)
		assert.Equal(t, "100.00", entry.ReceivedAmount)
		assert.Equal(t, "confirmed", entry.Status)
		assert.Equal(t, "dhaka-store", entry.StoreSlug)
		assert.Equal(t, "corr-9", entry.CorrelationID)
		assert.WithinDuration(t, time.Now(), entry.RecordedAt, time.Second)
	})

	t.Run("Failed", func(t *testing.T) {
		result := verification.Failed(verification.CodeMethodMismatch, "Payment method mismatch: expected nagad, received bkash")
		event, ok := shared.NewPaymentEvent(attempt, result, "")
		require.True(t, ok)

		entry := NewEntry(event)
		assert.Equal(t, shared.PaymentEventFailed, entry.EventType)
		assert.Empty(t, entry.ReceivedAmount)
		assert.Equal(t, verification.CodeMethodMismatch, entry.ErrorCode)
	})
}

func TestErrorIs(t *testing.T) {
	id := uuid.New()
	assert.True(t, errors.Is(ErrEntryNotFound{EventID: id}, ErrEntryNotFound{}))
	assert.False(t, errors.Is(ErrEntryNotFound{EventID: id}, ErrEntryNotFound{EventID: uuid.New()}))
	assert.True(t, errors.Is(ErrDuplicateEntry{EventID: id}, ErrDuplicateEntry{EventID: id}))
	assert.False(t, errors.Is(ErrDuplicateEntry{EventID: id}, ErrEntryNotFound{}))
}
