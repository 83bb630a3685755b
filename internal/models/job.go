// Package models holds the persistent entities of the scheduler core.
package models

import (
	"encoding/json"
	"time"

	"gofire/internal/state"
)

// JobType enumerates the kind of delivery a Job performs. HTTP is the only
// supported type; the field exists so the Store schema does not need to
// change if another delivery type is added later.
type JobType string

const (
	JobTypeHTTP JobType = "HTTP"
)

// ScheduleType selects which schedule fields on a Job are meaningful.
type ScheduleType string

const (
	ScheduleCron         ScheduleType = "CRON"
	ScheduleSpecificTime ScheduleType = "SPECIFIC_TIME"
	ScheduleRecurring    ScheduleType = "RECURRING"
)

// Interval is the unit used by a RECURRING schedule.
type Interval string

const (
	IntervalMinute Interval = "MINUTE"
	IntervalHour   Interval = "HOUR"
	IntervalDay    Interval = "DAY"
	IntervalWeek   Interval = "WEEK"
	IntervalMonth  Interval = "MONTH"
	IntervalYear   Interval = "YEAR"
)

// Job is the primary entity: an HTTP target, a payload, and a schedule.
// JSON tags follow spec.md §3's attribute table verbatim, since a Job is
// returned as-is by every REST endpoint in §6.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        JobType         `json:"type"`
	Target      string          `json:"target"`
	Payload     json.RawMessage `json:"payload,omitempty"`

	ScheduleType   ScheduleType `json:"schedule_type"`
	CronExpression string       `json:"cron_expression,omitempty"`
	SpecificTime   *time.Time   `json:"specific_time,omitempty"`
	Interval       Interval     `json:"interval,omitempty"`
	IntervalValue  int          `json:"interval_value,omitempty"`

	Status       state.Status `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastRun      *time.Time   `json:"last_run,omitempty"`
	NextRun      *time.Time   `json:"next_run,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// DispatchEnvelope is the opaque payload carried by a Dispatch Queue entry.
// The Worker treats it as a hint only — it re-reads the Job from the Store
// before acting on it (the authoritative re-read, spec.md §4.4 step 1).
type DispatchEnvelope struct {
	JobID   string          `json:"job_id"`
	Target  string          `json:"target"`
	Type    JobType         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RepeatPlan is either a cron expression or a fixed period, never both.
type RepeatPlan struct {
	Cron    string        `json:"cron,omitempty"`
	Every   time.Duration `json:"every,omitempty"`
	IsCron  bool          `json:"is_cron"`
	IsEvery bool          `json:"is_every"`
}

// DeliveryResult describes the outcome of one Worker attempt. No package in
// this module constructs it; the Worker records outcomes only through its
// Store writes.
type DeliveryResult struct {
	JobID     string
	Attempt   int
	Success   bool
	Err       error
	Retryable bool
	RanAt     time.Time
}

// Filter narrows a Job Store List call.
type Filter struct {
	Status *state.Status
}
