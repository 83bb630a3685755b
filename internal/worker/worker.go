// Package worker implements the Delivery Worker: executes one delivery
// attempt per dispatched entry, grounded on GoFire's
// internal/app/cron_job_manager.go executeJob (authoritative reread,
// classify-then-persist) and on jdziat-simple-durable-jobs/pkg/worker's
// retryWithBackoff for the inner retry loop.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

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

// Deliverer executes spec.md §4.4's seven-step delivery procedure. Its
// Handle method is the queue.Handler passed to Queue.Consume.
type Deliverer struct {
	store         store.Store
	queue         queue.Queue
	log           *zap.Logger
	client        *http.Client
	targetAllowed func(hostname string) bool
}

// New wires a Deliverer. targetAllowed is usually config.Config.TargetAllowed.
func New(st store.Store, q queue.Queue, targetAllowed func(hostname string) bool, log *zap.Logger) *Deliverer {
	return &Deliverer{
		store:         st,
		queue:         q,
		log:           log,
		client:        newHTTPClient(),
		targetAllowed: targetAllowed,
	}
}

// Handle is the queue.Handler entry point.
func (d *Deliverer) Handle(ctx context.Context, envelope models.DispatchEnvelope) error {
	// Step 1: authoritative reread.
	job, err := d.store.Get(ctx, envelope.JobID)
	if err == store.ErrNotFound {
		d.log.Info("dropping stale dispatch entry", zap.String(logging.FieldJobID, envelope.JobID))
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status == state.StatusInactive {
		return nil
	}

	// Step 2: target validation.
	u, err := validateTarget(job.Target, d.targetAllowed)
	if err != nil {
		return d.fail(ctx, job, err)
	}

	// Step 3: payload guard + sanitize.
	if len(job.Payload) > constants.MaxPayloadBytes {
		return d.fail(ctx, job, errs.New(errs.KindPayloadTooLarge, "payload exceeds 1 MiB"))
	}
	sanitized, err := sanitizePayload(job.Payload)
	if err != nil {
		return d.fail(ctx, job, errs.Wrap(errs.KindValidation, "payload is not valid JSON", err))
	}

	// Steps 4-5: HTTP POST wrapped in the inner exponential-backoff retry.
	if err := d.deliverWithRetry(ctx, u.String(), sanitized); err != nil {
		return d.fail(ctx, job, err)
	}

	// Step 6: on success.
	return d.succeed(ctx, job)
}

// deliverWithRetry wraps post in an attempt loop: up to WorkerMaxAttempts,
// backing off from WorkerMinBackoffSecs up to WorkerMaxBackoffSecs, and
// short-circuiting on the first non-retryable classification.
func (d *Deliverer) deliverWithRetry(ctx context.Context, target string, payload []byte) error {
	backoff := time.Duration(constants.WorkerMinBackoffSecs) * time.Second
	var lastErr error

	for attempt := 1; attempt <= constants.WorkerMaxAttempts; attempt++ {
		lastErr = d.post(ctx, target, payload)
		if lastErr == nil {
			return nil
		}
		if !errs.Classify(lastErr).Retryable() {
			return lastErr
		}
		if attempt >= constants.WorkerMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > time.Duration(constants.WorkerMaxBackoffSecs)*time.Second {
			backoff = time.Duration(constants.WorkerMaxBackoffSecs) * time.Second
		}
	}

	return lastErr
}

// succeed implements step 6: compute the next dispatch instant and record
// the successful run. status is left untouched on success. A RECURRING
// MONTH/YEAR job has no fixed-duration repeat plan (spec.md §9 choice
// (a)), so it was dispatched as a bare delayed entry rather than a
// repeating registration — the Worker re-arms a fresh delayed entry to the
// newly computed next_run here, on every successful dispatch.
func (d *Deliverer) succeed(ctx context.Context, job *models.Job) error {
	now := time.Now()
	next := schedule.NextRun(job, now)
	if _, err := d.store.RecordRun(ctx, job.ID, now, next); err != nil {
		return err
	}

	if next != nil && job.ScheduleType == models.ScheduleRecurring && schedule.RepeatPlan(job) == nil {
		envelope := models.DispatchEnvelope{JobID: job.ID, Target: job.Target, Type: job.Type, Payload: job.Payload}
		if err := d.queue.EnqueueDelayed(ctx, job.ID, *next, envelope); err != nil {
			d.log.Error("failed to re-arm MONTH/YEAR recurring dispatch",
				zap.String(logging.FieldJobID, job.ID), zap.Error(err))
		}
	}
	return nil
}

// fail implements step 7: classify, persist the appropriate status and
// message, dead-letter non-retryable failures, and re-raise so the Queue's
// outer retry (for retryable kinds) or attempt-draining (for non-retryable
// kinds, already handled here) proceeds.
func (d *Deliverer) fail(ctx context.Context, job *models.Job, cause error) error {
	kind := errs.Classify(cause)
	msg := logging.Truncate(cause.Error(), 500)

	if kind.Retryable() {
		retryMsg := fmt.Sprintf("Temporary failure: %s. The job will be retried.", msg)
		if _, err := d.store.UpdateStatus(ctx, job.ID, state.StatusActive, &retryMsg); err != nil {
			d.log.Error("failed to record temporary failure",
				zap.String(logging.FieldJobID, job.ID), zap.Error(err))
		}
		return cause
	}

	if _, err := d.store.UpdateStatus(ctx, job.ID, state.StatusFailed, &msg); err != nil {
		d.log.Error("failed to record terminal failure",
			zap.String(logging.FieldJobID, job.ID), zap.Error(err))
	}
	if err := d.queue.Remove(ctx, job.ID); err != nil {
		d.log.Error("failed to clear queue registration on terminal failure",
			zap.String(logging.FieldJobID, job.ID), zap.Error(err))
	}
	if err := d.queue.EnqueueDLQ(ctx, queue.DLQEntry{
		JobID:    job.ID,
		Reason:   msg,
		FailedAt: time.Now(),
		Attempts: constants.WorkerMaxAttempts,
	}); err != nil {
		d.log.Error("failed to enqueue DLQ entry",
			zap.String(logging.FieldJobID, job.ID), zap.Error(err))
	}
	return cause
}
