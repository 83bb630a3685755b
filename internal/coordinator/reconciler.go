package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gofire/internal/constants"
	"gofire/internal/lock"
	"gofire/internal/logging"
	"gofire/internal/models"
	"gofire/internal/state"
)

// Reconciler periodically re-establishes spec.md §8 property 1 ("every
// ACTIVE job with a future next_run has exactly one live Queue entry")
// against cross-system writes that cannot be transactional, grounded on
// GoFire's internal/app/enqueue_scheduler.go ProcessEnqueues loop (a
// ticker-driven pass acquiring a singleton advisory lock per iteration).
// It does not invent state: a Store row missing its Queue entry is
// re-registered by recomputing the same schedule the Coordinator would
// have used originally.
type Reconciler struct {
	coordinator *Coordinator
	locker      lock.DistributedLockManager
	interval    time.Duration
	log         *zap.Logger
}

func NewReconciler(c *Coordinator, locker lock.DistributedLockManager, log *zap.Logger) *Reconciler {
	return &Reconciler{coordinator: c, locker: locker, interval: time.Minute, log: log}
}

// Run blocks until ctx is cancelled, ticking a reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				r.log.Warn("reconciler tick failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) error {
	if err := r.locker.Acquire(constants.LockReconciler); err != nil {
		return err
	}
	defer r.locker.Release(constants.LockReconciler)

	active := state.StatusActive
	jobs, err := r.coordinator.store.List(ctx, models.Filter{Status: &active})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, job := range jobs {
		if job.NextRun == nil || !job.NextRun.After(now) {
			continue
		}
		if err := r.coordinator.queue.Remove(ctx, job.ID); err != nil {
			r.log.Error("failed to clear queue registration before reconciling",
				zap.String(logging.FieldJobID, job.ID), zap.Error(err))
			continue
		}
		if err := r.coordinator.reregister(ctx, job, job.NextRun); err != nil {
			r.log.Error("failed to re-register orphaned job during reconciliation",
				zap.String(logging.FieldJobID, job.ID), zap.Error(err))
		}
	}
	return nil
}
