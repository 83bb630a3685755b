// Package queue implements the Dispatch Queue: a Redis-backed holding area
// for delayed one-shot dispatches, repeating registrations, and the DLQ
// sub-queue, grounded on GoFire's internal/app/enqueue_scheduler.go and
// internal/app/cron_job_manager.go (semaphore-bounded poll loop) and on the
// retrieval pack's coganka-go-redis-job-queue envelope shape.
package queue

import (
	"context"
	"time"

	"gofire/internal/models"
)

// RegisteredPlan is the repeating-registration record stored in the
// repeating hash: either a cron expression or a fixed period, paired with
// the envelope to re-enqueue on each occurrence.
type RegisteredPlan struct {
	Key      string                  `json:"key"`
	Cron     string                  `json:"cron,omitempty"`
	EveryMS  int64                   `json:"every_ms,omitempty"`
	Envelope models.DispatchEnvelope `json:"envelope"`
}

// DLQEntry is a dead-lettered Job reference, stored verbatim in the DLQ
// hash. The Coordinator's reactivate/complete/delete operations remove it;
// its listDLQ reads FAILED rows from the Store, not these entries.
type DLQEntry struct {
	JobID      string    `json:"job_id"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
	Attempts   int       `json:"attempts"`
}

// Handler processes one ready dispatch entry. A non-nil error causes
// Consume to re-insert the entry at a backed-off future score, up to
// attempts exhausted. The Handler itself, not the Queue, owns placing a
// terminally-failed entry on the DLQ and clearing its own registration;
// Consume never inspects the error's classification or touches the DLQ.
type Handler func(ctx context.Context, envelope models.DispatchEnvelope) error

// Queue is the Dispatch Queue contract from spec.md §4.3.
type Queue interface {
	EnqueueDelayed(ctx context.Context, key string, at time.Time, envelope models.DispatchEnvelope) error
	EnqueueRepeating(ctx context.Context, plan RegisteredPlan) error
	Remove(ctx context.Context, key string) error
	Consume(ctx context.Context, handler Handler) error

	EnqueueDLQ(ctx context.Context, entry DLQEntry) error
	RemoveDLQ(ctx context.Context, jobID string) error
	ListDLQ(ctx context.Context) ([]DLQEntry, error)
}

// delayedEntry is the JSON member stored in the delayed sorted set.
type delayedEntry struct {
	Key      string                  `json:"key"`
	At       time.Time               `json:"at"`
	Envelope models.DispatchEnvelope `json:"envelope"`
	Attempt  int                     `json:"attempt"`
}
