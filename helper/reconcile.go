package helper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileTimeout = 2 * time.Minute

type PendingReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// cronLogger routes robfig/cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func ReconcilePayments(ctx context.Context, r PendingReconciler, olderThan time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	n, err := r.ReconcilePending(ctx, olderThan)
	if err != nil {
		log.Error("pending payment reconcile failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("reconciled pending payments", zap.Int("count", n))
	}
}

// StartPaymentReconciler re-checks stale PENDING payments on the given cron spec.
// Runs never overlap.
func StartPaymentReconciler(r PendingReconciler, spec string, olderThan time.Duration, log *zap.Logger) (*cron.Cron, error) {
	logger := cronLogger{s: log.Sugar()}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)

	_, err := scheduler.AddFunc(spec, func() { ReconcilePayments(context.Background(), r, olderThan, log) })
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	log.Info("payment reconciler started", zap.String("spec", spec), zap.Duration("older_than", olderThan))
	return scheduler, nil
}
