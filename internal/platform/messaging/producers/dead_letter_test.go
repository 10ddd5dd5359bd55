package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vendweave-gateway/internal/config"
	applog "github.com/vendweave-gateway/internal/logger"
)

func newTestDLQProducer(writer KafkaWriter) *DLQProducer {
	return &DLQProducer{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
		writer: writer,
		topic:  "test-payment-events-dlq",
	}
}

func decodeDeadLetter(t *testing.T, msg kafka.Message) DeadLetter {
	t.Helper()
	var letter DeadLetter
	require.NoError(t, json.Unmarshal(msg.Value, &letter))
	return letter
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	t.Run("KeepsJSONPayloadVerbatim", func(t *testing.T) {
		ctx := applog.WithCorrelationID(context.Background(), "corr-9")
		mockWriter := new(MockKafkaWriter)
		producer := newTestDLQProducer(mockWriter)
		payload := []byte(`{"event_id":"e-1","order_id":"WC-1"}`)

		var written []kafka.Message
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).
			Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
			Return(nil).Once()

		err := producer.PublishToDLQ(ctx, "WC-1", payload, "outbox publish failed after 5 attempts")
		require.NoError(t, err)
		require.Len(t, written, 1)

		msg := written[0]
		assert.Equal(t, "WC-1", string(msg.Key))
		assert.Equal(t, "outbox publish failed after 5 attempts", headerValue(msg, DeadLetterReasonHeader))
		assert.Equal(t, "corr-9", headerValue(msg, DeadLetterCorrelationHeader))

		letter := decodeDeadLetter(t, msg)
		assert.Equal(t, "WC-1", letter.Key)
		assert.JSONEq(t, string(payload), string(letter.Payload))
		assert.Empty(t, letter.RawPayload)
		assert.Equal(t, "corr-9", letter.CorrelationID)
		assert.False(t, letter.DeadLetteredAt.IsZero())
		mockWriter.AssertExpectations(t)
	})

	t.Run("WrapsUndecodablePayloadAsText", func(t *testing.T) {
		ctx := context.Background()
		mockWriter := new(MockKafkaWriter)
		producer := newTestDLQProducer(mockWriter)

		var written []kafka.Message
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).
			Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
			Return(nil).Once()

		err := producer.PublishToDLQ(ctx, "WC-2", []byte("{invalid json"), "undecodable payment event")
		require.NoError(t, err)
		require.Len(t, written, 1)

		letter := decodeDeadLetter(t, written[0])
		assert.Empty(t, letter.Payload)
		assert.Equal(t, "{invalid json", letter.RawPayload)
		assert.Empty(t, letter.CorrelationID)
		assert.Empty(t, headerValue(written[0], DeadLetterCorrelationHeader))
	})

	t.Run("WriterError", func(t *testing.T) {
		ctx := context.Background()
		mockWriter := new(MockKafkaWriter)
		producer := newTestDLQProducer(mockWriter)
		writerErr := errors.New("broker unavailable")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.PublishToDLQ(ctx, "WC-3", []byte(`{}`), "reason")
		assert.ErrorIs(t, err, writerErr)
		assert.ErrorContains(t, err, "test-payment-events-dlq")
		mockWriter.AssertExpectations(t)
	})

	t.Run("Disabled", func(t *testing.T) {
		var producer *DLQProducer

		err := producer.PublishToDLQ(context.Background(), "WC-4", []byte(`{}`), "reason")
		assert.ErrorIs(t, err, ErrDLQDisabled)
	})
}

func TestNewDLQProducer_WithoutTopic(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	producer, err := NewDLQProducer(context.Background(), logger, &config.KafkaConfig{Brokers: "localhost:9092"})

	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestDLQProducer_Close(t *testing.T) {
	t.Run("ClosesWriter", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("Close").Return(nil).Once()

		require.NoError(t, newTestDLQProducer(mockWriter).Close())
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterCloseError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		closeErr := errors.New("close failed")
		mockWriter.On("Close").Return(closeErr).Once()

		assert.ErrorIs(t, newTestDLQProducer(mockWriter).Close(), closeErr)
	})

	t.Run("NilProducer", func(t *testing.T) {
		var producer *DLQProducer
		assert.NoError(t, producer.Close())
	})
}
