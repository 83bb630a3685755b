// Package store implements the Job Store: durable, transactional storage
// of Job records, grounded on GoFire's internal/repository/postgres/*
// (raw database/sql + lib/pq, schema-qualified table, RETURNING clauses).
package store

import (
	"context"
	"time"

	"gofire/internal/models"
	"gofire/internal/state"
)

// Store is the Job Store contract from spec.md §4.2.
type Store interface {
	Insert(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Job, error)
	Update(ctx context.Context, id string, job *models.Job) (*models.Job, error)
	UpdateStatus(ctx context.Context, id string, status state.Status, errorMessage *string) (*models.Job, error)
	Delete(ctx context.Context, id string) (*models.Job, error)
	RecordRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (*models.Job, error)
	Close() error
}

// ErrNotFound is returned when an operation targets a Job id that does not
// exist in the Store.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "job not found" }

// ErrConflict is returned by Insert when the id already exists.
var ErrConflict = &conflictError{}

type conflictError struct{}

func (e *conflictError) Error() string { return "job already exists" }
