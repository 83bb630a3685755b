package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gofire/internal/models"
	"gofire/internal/state"
)

const jobColumns = `
	id, name, description, type, target, payload,
	schedule_type, cron_expression, specific_time, interval, interval_value,
	status, created_at, updated_at, last_run, next_run, error_message
`

// PostgresStore is the Job Store backed by PostgreSQL, grounded on GoFire's
// internal/repository/postgres/postgres_cron_job_repository.go (raw
// database/sql, schema-qualified table, positional params, RETURNING).
type PostgresStore struct {
	db *sql.DB
}

// Open connects to postgresURL and configures the pool with at most 20 open
// connections and a 30s idle time (GoFire's own repositories never set
// these, so this call is new but uses the same database/sql API). The 2s
// timeout bounds only the initial connectivity ping; later queries acquire
// connections under their caller's context with no pool-level timeout.
func Open(postgresURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection pool so the process entrypoint can
// share it with the advisory lock manager instead of opening a second pool.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, job *models.Job) (*models.Job, error) {
	query := fmt.Sprintf(`
		INSERT INTO gofire_schema.jobs (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING %s
	`, jobColumns, jobColumns)

	row := s.db.QueryRowContext(ctx, query,
		job.ID, job.Name, job.Description, job.Type, job.Target, job.Payload,
		job.ScheduleType, job.CronExpression, job.SpecificTime, job.Interval, job.IntervalValue,
		job.Status, job.CreatedAt, job.UpdatedAt, job.LastRun, job.NextRun, job.ErrorMessage,
	)
	result, err := scanJob(row)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return nil, ErrConflict
	}
	return result, err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM gofire_schema.jobs WHERE id = $1`, jobColumns)
	row := s.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return job, err
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM gofire_schema.jobs`, jobColumns)
	var args []interface{}
	if filter.Status != nil {
		query += ` WHERE status = $1`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id string, job *models.Job) (*models.Job, error) {
	query := `
		UPDATE gofire_schema.jobs
		SET name = $2, description = $3, type = $4, target = $5, payload = $6,
		    schedule_type = $7, cron_expression = $8, specific_time = $9,
		    interval = $10, interval_value = $11, status = $12,
		    next_run = $13, error_message = $14, updated_at = now()
		WHERE id = $1
		RETURNING ` + jobColumns

	row := s.db.QueryRowContext(ctx, query,
		id, job.Name, job.Description, job.Type, job.Target, job.Payload,
		job.ScheduleType, job.CronExpression, job.SpecificTime,
		job.Interval, job.IntervalValue, job.Status, job.NextRun, job.ErrorMessage,
	)
	result, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return result, err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status state.Status, errorMessage *string) (*models.Job, error) {
	query := `
		UPDATE gofire_schema.jobs
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + jobColumns

	row := s.db.QueryRowContext(ctx, query, id, status, errorMessage)
	result, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return result, err
}

func (s *PostgresStore) RecordRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (*models.Job, error) {
	query := `
		UPDATE gofire_schema.jobs
		SET last_run = $2, next_run = $3, error_message = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + jobColumns

	row := s.db.QueryRowContext(ctx, query, id, lastRun, nextRun)
	result, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return result, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`DELETE FROM gofire_schema.jobs WHERE id = $1 RETURNING %s`, jobColumns)
	row := s.db.QueryRowContext(ctx, query, id)
	result, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return result, err
}

// scanner abstracts *sql.Row and *sql.Rows, both of which implement Scan.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*models.Job, error) {
	return scanJobRows(row)
}

func scanJobRows(row scanner) (*models.Job, error) {
	var job models.Job
	var payload []byte
	err := row.Scan(
		&job.ID, &job.Name, &job.Description, &job.Type, &job.Target, &payload,
		&job.ScheduleType, &job.CronExpression, &job.SpecificTime, &job.Interval, &job.IntervalValue,
		&job.Status, &job.CreatedAt, &job.UpdatedAt, &job.LastRun, &job.NextRun, &job.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	return &job, nil
}
