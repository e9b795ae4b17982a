// Package worker runs the background sweeper that picks up payments no
// confirmation channel ever settled. Lost webhooks, abandoned browsers
// and dropped IPNs all end up here; the sweeper re-validates each stuck
// payment through the same reconciler path as live traffic.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/courseloop/enrollment-gateway/internal/domain"
	"github.com/courseloop/enrollment-gateway/internal/gateway"
	"github.com/courseloop/enrollment-gateway/internal/services"
)

type PendingLister interface {
	FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Payment, error)
}

type Reconciler interface {
	Confirm(ctx context.Context, evt services.Event) (*services.ConfirmResult, error)
}

type Sweeper struct {
	payments   PendingLister
	reconciler Reconciler
	interval   time.Duration
	batchSize  int
	// minAge keeps the sweeper off payments a live request may still be
	// confirming.
	minAge time.Duration
	logger *slog.Logger
}

func NewSweeper(
	payments PendingLister,
	reconciler Reconciler,
	interval time.Duration,
	batchSize int,
	minAge time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		payments:   payments,
		reconciler: reconciler,
		interval:   interval,
		batchSize:  batchSize,
		minAge:     minAge,
		logger:     logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting payment sweeper",
		"interval", s.interval,
		"batch_size", s.batchSize,
		"min_age", s.minAge,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping payment sweeper")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep cycle.
func (s *Sweeper) RunOnce(ctx context.Context) {
	pending, err := s.payments.FindPendingOlderThan(ctx, s.minAge, s.batchSize)
	if err != nil {
		s.logger.Error("failed to fetch stuck payments", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	s.logger.Info("sweeping stuck payments", "count", len(pending))

	for _, p := range pending {
		if p.GatewayTransactionRef == nil {
			continue
		}
		res, err := s.reconciler.Confirm(ctx, services.Event{
			TransactionRef: *p.GatewayTransactionRef,
			Channel:        services.ChannelSweep,
		})
		if err != nil {
			// Transient provider failures resolve themselves on the
			// next cycle; anything else is worth a look.
			if gateway.IsRetryable(err) {
				s.logger.Warn("sweep deferred, provider unavailable", "payment_id", p.ID)
			} else {
				s.logger.Error("sweep failed", "payment_id", p.ID, "error", err)
			}
			continue
		}
		if res.Outcome != services.OutcomeStillPending {
			s.logger.Info("sweep settled payment",
				"payment_id", p.ID,
				"outcome", res.Outcome,
			)
		}
	}
}
