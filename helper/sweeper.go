package helper

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// SweepSessions runs one cleanup pass and logs how many sessions it expired.
func SweepSessions(ctx context.Context, cleaner SessionCleaner, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Error("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired customer sessions", zap.Int("count", n))
	}
}

// StartSessionSweeper schedules SweepSessions every interval. Callers stop it with Shutdown.
func StartSessionSweeper(cleaner SessionCleaner, interval time.Duration, log *zap.Logger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { SweepSessions(context.Background(), cleaner, log) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	s.Start()
	log.Info("session sweeper started", zap.Duration("interval", interval))
	return s, nil
}
