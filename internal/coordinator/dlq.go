package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gofire/internal/logging"
	"gofire/internal/models"
	"gofire/internal/schedule"
	"gofire/internal/state"
)

// ListDLQ returns every Job currently in the FAILED state, per spec.md
// §4.5's listDLQ operation. The Dispatch Queue's DLQ hash carries the
// failure reason/attempt count, but the Job rows are the system of record
// for which jobs are dead-lettered.
func (c *Coordinator) ListDLQ(ctx context.Context) ([]*models.Job, error) {
	failed := state.StatusFailed
	return c.store.List(ctx, models.Filter{Status: &failed})
}

// Reactivate implements spec.md §4.5's reactivate operation: clear the
// failure, recompute next_run from now, re-register an active Queue entry
// for the new schedule, and drop the DLQ record.
func (c *Coordinator) Reactivate(ctx context.Context, id string) (*models.Job, error) {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next := schedule.NextRun(job, now)
	job.Status = state.StatusActive
	job.ErrorMessage = nil
	job.NextRun = next

	persisted, err := c.store.Update(ctx, id, job)
	if err != nil {
		return nil, err
	}

	if err := c.reregister(ctx, persisted, next); err != nil {
		c.log.Error("failed to re-register queue entry on reactivate",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}

	if err := c.queue.RemoveDLQ(ctx, id); err != nil {
		c.log.Error("failed to clear DLQ entry on reactivate",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}
	return persisted, nil
}

// Complete implements spec.md §4.5's complete operation: mark the job as
// though it had just succeeded (last_run=now, next_run recomputed), set it
// ACTIVE and drop its DLQ record. No active Queue registration is added or
// removed; a completed dead-letter keeps whatever registration it had.
func (c *Coordinator) Complete(ctx context.Context, id string) (*models.Job, error) {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next := schedule.NextRun(job, now)
	if _, err := c.store.RecordRun(ctx, id, now, next); err != nil {
		return nil, err
	}
	persisted, err := c.store.UpdateStatus(ctx, id, state.StatusActive, nil)
	if err != nil {
		return nil, err
	}

	if err := c.queue.RemoveDLQ(ctx, id); err != nil {
		c.log.Error("failed to clear DLQ entry on complete",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}
	return persisted, nil
}

// DeleteDLQ implements spec.md §4.5's deleteDLQ operation, identical to
// Delete.
func (c *Coordinator) DeleteDLQ(ctx context.Context, id string) (*models.Job, error) {
	return c.Delete(ctx, id)
}

func (c *Coordinator) reregister(ctx context.Context, job *models.Job, next *time.Time) error {
	if job.ScheduleType == models.ScheduleSpecificTime {
		delay := schedule.InitialDelay(job)
		if delay == nil {
			return nil
		}
		return c.queue.EnqueueDelayed(ctx, job.ID, *job.SpecificTime, buildEnvelope(job))
	}

	plan := schedule.RepeatPlan(job)
	if plan == nil {
		if next == nil {
			return nil
		}
		return c.queue.EnqueueDelayed(ctx, job.ID, *next, buildEnvelope(job))
	}
	return c.queue.EnqueueRepeating(ctx, toRegisteredPlan(job, plan))
}
