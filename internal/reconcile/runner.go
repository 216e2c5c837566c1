// Package reconcile runs refund reconciliation as a single-runner scheduled job.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
)

// ErrLocked means another runner holds the lock; the run was skipped.
var ErrLocked = errors.New("reconcile: lock held by another runner")

// Mutex is the subset of *redsync.Mutex the runner needs.
type Mutex interface {
	LockContext(ctx context.Context) error
	UnlockContext(ctx context.Context) (bool, error)
}

type Runner struct {
	Refunds  *service.RefundOrchestrator
	NewMutex func() Mutex
	Batch    int
	Grace    time.Duration // minimum age of a reservation before it is retried
	Timeout  time.Duration
}

// Run performs one reconciliation pass while holding the lock.
func (r *Runner) Run(ctx context.Context) (service.ReconcileReport, error) {
	l := logging.FromContext(ctx).With("job", "reconcile_refunds")
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if r.NewMutex != nil {
		mu := r.NewMutex()
		if err := mu.LockContext(ctx); err != nil {
			l.Info("reconcile_skipped", "reason", "locked", "error", err)
			return service.ReconcileReport{}, ErrLocked
		}
		defer func() {
			// The job context may have expired; release on a fresh one.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if _, err := mu.UnlockContext(unlockCtx); err != nil {
				l.Warn("reconcile_unlock_failed", "error", err)
			}
		}()
	}

	rep, err := r.Refunds.ReconcilePending(ctx, r.Grace, r.Batch)
	if err != nil {
		l.Error("reconcile_error", "visited", rep.Visited, "error", err)
		return rep, err
	}
	l.Info("reconcile_success",
		"visited", rep.Visited,
		"completed", rep.Completed,
		"pending", rep.Pending,
		"failed", rep.Failed,
	)
	return rep, nil
}
