package scheduler

import (
	"context"
	"fmt"
	"time"

	"closet-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	lateSweepLock    = "late-sweep"
	lateSweepLockTTL = 10 * time.Minute
	lateSweepTimeout = 5 * time.Minute
)

// LatePromoter moves overdue orders to late.
type LatePromoter interface {
	PromoteLateOrders(ctx context.Context) (int, error)
}

// Locker hands out named, expiring locks shared by every instance.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// Scheduler runs the periodic jobs of the service
type Scheduler struct {
	cron     *cron.Cron
	promoter LatePromoter
	locker   Locker
	logger   *zap.Logger
}

// NewScheduler registers the late sweep on schedule, a six-field cron
// expression with seconds. locker may be nil when only one instance runs.
func NewScheduler(schedule string, promoter LatePromoter, locker Locker) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:     c,
		promoter: promoter,
		locker:   locker,
		logger:   util.GetLogger(),
	}

	if _, err := c.AddFunc(schedule, s.SweepLateOrders); err != nil {
		return nil, fmt.Errorf("failed to register late sweep %q: %w", schedule, err)
	}
	return s, nil
}

// SweepLateOrders promotes overdue orders once. Only the instance holding the
// sweep lock does any work.
func (s *Scheduler) SweepLateOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), lateSweepTimeout)
	defer cancel()

	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, lateSweepLock, lateSweepLockTTL)
		if err != nil {
			s.logger.Error("Failed to acquire late sweep lock", zap.Error(err))
			return
		}
		if !ok {
			s.logger.Debug("Late sweep already running elsewhere")
			return
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), lateSweepLock, token); err != nil {
				s.logger.Warn("Failed to release late sweep lock", zap.Error(err))
			}
		}()
	}

	n, err := s.promoter.PromoteLateOrders(ctx)
	if err != nil {
		s.logger.Error("Late sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Late sweep finished", zap.Int("promoted", n))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")
	<-s.cron.Stop().Done()
	s.logger.Info("Cron scheduler stopped")
}
