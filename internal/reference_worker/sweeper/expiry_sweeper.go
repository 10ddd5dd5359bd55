// Package sweeper expires reserved references whose TTL has passed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendweave-gateway/internal/domain/reference"
)

// Expirer is the part of the reference ledger the sweeper drives
type Expirer interface {
	Enabled() bool
	ExpireOverdue(ctx context.Context) (int64, error)
}

// ExpirySweeper runs ExpireOverdue on a fixed interval
type ExpirySweeper struct {
	ledger   Expirer
	interval time.Duration
	logger   *slog.Logger
}

func NewExpirySweeper(ledger Expirer, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Start sweeps until ctx is canceled. It returns at once when governance is disabled.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if !s.ledger.Enabled() {
		s.logger.Info("Reference governance disabled, expiry sweeper not started")
		return
	}

	s.logger.Info("Starting reference expiry sweeper", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Reference expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires every overdue reserved reference once
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	expired, err := s.ledger.ExpireOverdue(ctx)
	if err != nil {
		if errors.Is(err, reference.ErrGovernanceDisabled) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to expire overdue references: %w", err)
	}

	if expired > 0 {
		s.logger.Info("Expired overdue references", "count", expired)
	}
	return expired, nil
}
