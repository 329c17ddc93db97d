package worker

import (
	"context"
	"time"

	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Sweeper periodically cancels Reserved orders that outlived the
// reservation TTL, restoring stock where it had been applied. It is a
// background correction process: racing manual settlements or cancels
// are resolved by the per-order transaction, not here.
type Sweeper struct {
	reconciler *service.Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(reconciler *service.Reconciler, interval time.Duration) *Sweeper {
	return &Sweeper{
		reconciler: reconciler,
		interval:   interval,
		logger:     util.GetLogger(),
	}
}

// Start runs sweep rounds until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			util.SweepRunsTotal.Inc()
			if _, err := s.reconciler.CancelExpired(ctx); err != nil {
				s.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}
