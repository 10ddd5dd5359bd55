package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
)

// WorkerPoolVerifier bounds the number of verifications talking to the provider at once
type WorkerPoolVerifier struct {
	baseVerifier Verifier
	pool         *ants.Pool
	logger       *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolVerifier(
	baseVerifier Verifier,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolVerifier, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolVerifier{
		baseVerifier: baseVerifier,
		pool:         pool,
		logger:       logger,
	}, nil
}

// Verify runs the attempt on a pooled worker and waits for its result.
// A full or closed pool yields Failed(API_ERROR) like any other provider-side fault.
func (s *WorkerPoolVerifier) Verify(ctx context.Context, attempt shared.VerificationAttempt) verification.Result {
	logger := s.logger
	if attempt.CorrelationID != "" {
		logger = s.logger.With("correlation_id", attempt.CorrelationID)
	}

	resultChan := make(chan verification.Result, 1)

	err := s.pool.Submit(func() {
		resultChan <- s.baseVerifier.Verify(ctx, attempt)
	})
	if err != nil {
		logger.Error("Failed to submit verification to worker pool",
			"order_id", attempt.OrderID,
			"error", err,
		)
		return verification.Failed(verification.CodeAPIError, "Verification capacity exhausted, retry shortly")
	}

	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		logger.Warn("Verification abandoned by caller", "order_id", attempt.OrderID, "error", ctx.Err())
		return verification.Pending("Verification is still in progress")
	}
}

// Shutdown releases the pool; queued verifications are dropped.
func (s *WorkerPoolVerifier) Shutdown() {
	s.logger.Info("Shutting down verification worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolVerifier) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolVerifier) Capacity() int {
	return s.pool.Cap()
}
