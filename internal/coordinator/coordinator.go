// Package coordinator implements the Engine Coordinator: the facade that
// turns a REST request into Store writes and Queue registrations, keeping
// the two in step. Grounded on GoFire's internal/gofire/job_manager.go
// (a facade holding Store + Queue + lock manager references, computing a
// schedule before persisting it via addOrUpdate) and on
// internal/app/enqueue_scheduler.go's lock-guarded background loop, reused
// here for the Reconciler.
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gofire/internal/constants"
	"gofire/internal/errs"
	"gofire/internal/logging"
	"gofire/internal/models"
	"gofire/internal/queue"
	"gofire/internal/schedule"
	"gofire/internal/state"
	"gofire/internal/store"
)

// Coordinator is the single entry point mutating both the Job Store and
// the Dispatch Queue; every method here is responsible for keeping the two
// systems consistent with each other (spec.md §8 property 1).
type Coordinator struct {
	store store.Store
	queue queue.Queue
	log   *zap.Logger
}

func New(st store.Store, q queue.Queue, log *zap.Logger) *Coordinator {
	return &Coordinator{store: st, queue: q, log: log}
}

func newJob(input JobInput, now time.Time) *models.Job {
	return &models.Job{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Description:    input.Description,
		Type:           models.JobTypeHTTP,
		Target:         input.Target,
		Payload:        input.Payload,
		ScheduleType:   input.ScheduleType,
		CronExpression: input.CronExpression,
		SpecificTime:   input.SpecificTime,
		Interval:       input.Interval,
		IntervalValue:  input.IntervalValue,
		Status:         state.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func buildEnvelope(job *models.Job) models.DispatchEnvelope {
	return models.DispatchEnvelope{
		JobID:   job.ID,
		Target:  job.Target,
		Type:    job.Type,
		Payload: job.Payload,
	}
}

// GetJob returns a single Job by id.
func (c *Coordinator) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return c.store.Get(ctx, id)
}

// ListJobs returns every Job matching filter (or all Jobs, unfiltered).
func (c *Coordinator) ListJobs(ctx context.Context, filter models.Filter) ([]*models.Job, error) {
	return c.store.List(ctx, filter)
}

// Create implements spec.md §4.5's Create procedure.
func (c *Coordinator) Create(ctx context.Context, input JobInput) (*models.Job, error) {
	if verrs := validate(input); verrs.HasErrors() {
		return nil, verrs
	}

	now := time.Now()
	job := newJob(input, now)

	next := schedule.NextRun(job, now)
	if job.ScheduleType != models.ScheduleSpecificTime && next == nil {
		return nil, errs.New(errs.KindValidation, "schedule produces no future dispatch instant")
	}
	job.NextRun = next

	inserted, err := c.store.Insert(ctx, job)
	if err != nil {
		if err == store.ErrConflict {
			return nil, errs.Wrap(errs.KindConflict, "a job with this id already exists", err)
		}
		return nil, err
	}

	if job.ScheduleType == models.ScheduleSpecificTime {
		delay := schedule.InitialDelay(inserted)
		if delay == nil {
			// SpecificTimeInPast: the row stays, dormant, with a nil next_run.
			// It is not rolled back; spec.md §4.5 treats this as a valid but
			// inert creation, distinct from the InvalidSchedule rollback below.
			c.log.Info("specific_time is already in the past; job created dormant",
				zap.String(logging.FieldJobID, inserted.ID))
			return inserted, nil
		}
		if err := c.queue.EnqueueDelayed(ctx, inserted.ID, *inserted.SpecificTime, buildEnvelope(inserted)); err != nil {
			return inserted, err
		}
		return inserted, nil
	}

	plan := schedule.RepeatPlan(job)
	if plan == nil {
		// RECURRING MONTH/YEAR has no fixed-duration repeat plan (spec.md §9
		// design choice (a)); validate already rejected every other way
		// repeat_plan could come back nil, so this path is MONTH/YEAR only.
		// The Coordinator schedules it as a bare delayed entry to next_run and
		// the Worker re-arms a fresh one after every successful dispatch.
		if err := c.queue.EnqueueDelayed(ctx, inserted.ID, *next, buildEnvelope(inserted)); err != nil {
			return inserted, err
		}
		return inserted, nil
	}

	if err := c.queue.EnqueueRepeating(ctx, toRegisteredPlan(inserted, plan)); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func toRegisteredPlan(job *models.Job, plan *models.RepeatPlan) queue.RegisteredPlan {
	rp := queue.RegisteredPlan{Key: job.ID, Envelope: buildEnvelope(job)}
	if plan.IsCron {
		rp.Cron = plan.Cron
	} else {
		rp.EveryMS = plan.Every.Milliseconds()
	}
	return rp
}

// Update implements spec.md §4.5's Update procedure: verify existence,
// validate, persist, then remove and re-register the Queue entry for the
// new schedule. id, created_at and last_run survive the rewrite. status
// is whatever the request carries, defaulting to ACTIVE when absent
// (spec.md §9's third Open Question), including moving a FAILED job back
// to ACTIVE without going through Reactivate.
func (c *Coordinator) Update(ctx context.Context, id string, input JobInput) (*models.Job, error) {
	existing, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if verrs := validate(input); verrs.HasErrors() {
		return nil, verrs
	}

	now := time.Now()
	updated := newJob(input, now)
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.LastRun = existing.LastRun
	if input.Status != "" {
		updated.Status = input.Status
	} else {
		updated.Status = state.StatusActive
	}

	next := schedule.NextRun(updated, now)
	if updated.ScheduleType != models.ScheduleSpecificTime && next == nil {
		return nil, errs.New(errs.KindValidation, "schedule produces no future dispatch instant")
	}
	updated.NextRun = next

	persisted, err := c.store.Update(ctx, id, updated)
	if err != nil {
		return nil, err
	}

	if err := c.queue.Remove(ctx, id); err != nil {
		c.log.Error("failed to remove stale queue registration during update",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}

	if persisted.ScheduleType == models.ScheduleSpecificTime {
		delay := schedule.InitialDelay(persisted)
		if delay == nil {
			return persisted, nil
		}
		if err := c.queue.EnqueueDelayed(ctx, persisted.ID, *persisted.SpecificTime, buildEnvelope(persisted)); err != nil {
			return persisted, err
		}
		return persisted, nil
	}

	plan := schedule.RepeatPlan(persisted)
	if plan == nil {
		if err := c.queue.EnqueueDelayed(ctx, persisted.ID, *next, buildEnvelope(persisted)); err != nil {
			return persisted, err
		}
		return persisted, nil
	}

	if err := c.queue.EnqueueRepeating(ctx, toRegisteredPlan(persisted, plan)); err != nil {
		return persisted, err
	}
	return persisted, nil
}

// Delete implements spec.md §4.5's Delete procedure. Both Queue removals
// are idempotent, so a Job that never had a live registration (a dormant
// past SPECIFIC_TIME, say) deletes cleanly.
func (c *Coordinator) Delete(ctx context.Context, id string) (*models.Job, error) {
	job, err := c.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.queue.Remove(ctx, id); err != nil {
		c.log.Error("failed to remove queue registration on delete",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}
	if err := c.queue.RemoveDLQ(ctx, id); err != nil {
		c.log.Error("failed to remove DLQ entry on delete",
			zap.String(logging.FieldJobID, id), zap.Error(err))
	}
	return job, nil
}

// RunNow implements spec.md §4.5's RunNow procedure: an immediate,
// one-off dispatch that does not disturb the Job's normal schedule
// registration. The manual key is distinct from the Job id so it can
// never collide with (or be cleared by) the regular registration.
func (c *Coordinator) RunNow(ctx context.Context, id string) error {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	key := id + constants.ManualRunKeySuffix + now.Format(time.RFC3339Nano)
	return c.queue.EnqueueDelayed(ctx, key, now, buildEnvelope(job))
}

// ToggleStatus implements spec.md §4.5's ToggleStatus procedure: a Store
// write only. The Queue registration is left untouched; the Worker's
// authoritative re-read (spec.md §4.4 step 1) is what actually skips
// delivery for an INACTIVE job, not a Queue-side removal.
func (c *Coordinator) ToggleStatus(ctx context.Context, id string, status state.Status) (*models.Job, error) {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, errs.New(errs.KindValidation, "status must be one of ACTIVE, INACTIVE, FAILED")
	}
	if !state.IsValidTransition(job.Status, status) {
		return nil, errs.New(errs.KindValidation, "invalid status transition")
	}

	errMsg := job.ErrorMessage
	if status == state.StatusActive {
		errMsg = nil
	}
	return c.store.UpdateStatus(ctx, id, status, errMsg)
}
