// Package job runs scheduled maintenance tasks.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenPurger deletes refresh and password-reset tokens that can no longer be used
type TokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler wraps a cron runner with the application's jobs
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger: logger,
	}
}

// AddTokenCleanup schedules the purge with a standard cron spec or descriptor such as "@hourly"
func (s *Scheduler) AddTokenCleanup(spec string, tokens TokenPurger, timeout time.Duration) error {
	if _, err := s.cron.AddFunc(spec, TokenCleanup(tokens, timeout, s.logger)); err != nil {
		return fmt.Errorf("schedule token cleanup %q: %w", spec, err)
	}
	s.logger.Info("Token cleanup scheduled", zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// TokenCleanup returns the job body; exposed so it can be run once on demand
func TokenCleanup(tokens TokenPurger, timeout time.Duration, logger *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		n, err := tokens.DeleteExpired(ctx, started)
		if err != nil {
			logger.Error("Token cleanup failed", zap.Error(err))
			return
		}
		logger.Info("Token cleanup completed",
			zap.Int64("deleted", n),
			zap.Duration("duration", time.Since(started)))
	}
}
