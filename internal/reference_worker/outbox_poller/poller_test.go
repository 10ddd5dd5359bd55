package outbox_poller

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/domain/outbox"
	"github.com/vendweave-gateway/internal/domain/shared"
)

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// MockDeadLetterPublisher for testing
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestPoller_ProcessPending(t *testing.T) {
	logger := slog.Default()
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	message1 := newOutboxMessage(t, 1, 0)
	message2 := newOutboxMessage(t, 2, 0)
	exhausted := newOutboxMessage(t, 3, 2)

	tests := []struct {
		name              string
		setupMocks        func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher)
		expectedPublished int
		expectedError     string
	}{
		{
			name: "publishes every pending message",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()
				publisher.On("Publish", mock.Anything, message1).Return(nil).Once()
				publisher.On("Publish", mock.Anything, message2).Return(nil).Once()
			},
			expectedPublished: 2,
		},
		{
			name: "error getting pending messages",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("db error")).Once()
			},
			expectedError: "failed to get pending outbox messages",
		},
		{
			name: "no pending messages",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()
			},
		},
		{
			name: "failed publish counts an attempt and continues",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()
				publisher.On("Publish", mock.Anything, message1).Return(errors.New("broker down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(1)).Return(nil).Once()
				publisher.On("Publish", mock.Anything, message2).Return(nil).Once()
			},
			expectedPublished: 1,
		},
		{
			name: "increment failure skips the retry budget check",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted}, nil).Once()
				publisher.On("Publish", mock.Anything, exhausted).Return(errors.New("broker down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(3)).Return(errors.New("db error")).Once()
			},
		},
		{
			name: "max retry attempts marks failed and forwards to DLQ",
			setupMocks: func(repo *MockOutboxRepo, publisher *MockEventPublisher, dlq *MockDeadLetterPublisher) {
				repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted}, nil).Once()
				publisher.On("Publish", mock.Anything, exhausted).Return(errors.New("broker down")).Once()
				repo.On("IncrementAttempts", mock.Anything, int64(3)).Return(nil).Once()
				repo.On("UpdateStatus", mock.Anything, int64(3), shared.OutboxStatusFailedToPublish).Return(nil).Once()
				dlq.On("PublishToDLQ", mock.Anything, "ORD1", []byte(exhausted.Payload),
					"outbox publish failed after 3 attempts: broker down").Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockOutboxRepo{}
			publisher := &MockEventPublisher{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(repo, publisher, dlq)

			poller := NewPoller(cfg, repo, publisher, dlq, logger)
			published, err := poller.ProcessPending(context.Background())

			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedPublished, published)

			repo.AssertExpectations(t)
			publisher.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}

func TestPoller_GiveUpWithoutDLQ(t *testing.T) {
	cfg := &config.OutboxConfig{PollingInterval: time.Second, BatchSize: 5, MaxRetryAttempts: 1}
	msg := newOutboxMessage(t, 9, 0)

	repo := &MockOutboxRepo{}
	publisher := &MockEventPublisher{}
	repo.On("GetPending", mock.Anything, 5).Return([]*outbox.Message{msg}, nil).Once()
	publisher.On("Publish", mock.Anything, msg).Return(errors.New("broker down")).Once()
	repo.On("IncrementAttempts", mock.Anything, int64(9)).Return(nil).Once()
	repo.On("UpdateStatus", mock.Anything, int64(9), shared.OutboxStatusFailedToPublish).Return(nil).Once()

	poller := NewPoller(cfg, repo, publisher, nil, slog.Default())
	published, err := poller.ProcessPending(context.Background())

	assert.NoError(t, err)
	assert.Zero(t, published)
	repo.AssertExpectations(t)
}

func TestPoller_Start(t *testing.T) {
	repo := &MockOutboxRepo{}
	publisher := &MockEventPublisher{}
	cfg := &config.OutboxConfig{
		PollingInterval:  10 * time.Millisecond,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil)

	poller := NewPoller(cfg, repo, publisher, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
	repo.AssertCalled(t, "GetPending", mock.Anything, 10)
}
