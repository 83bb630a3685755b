package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofire/internal/models"
	"gofire/internal/queue"
	"gofire/internal/state"
	"gofire/internal/store"
)

// fakeStore is an in-memory Store double backed by a map of Jobs, so tests
// can seed and inspect rows directly.
type fakeStore struct {
	jobs map[string]*models.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*models.Job)}
}

func (f *fakeStore) Insert(ctx context.Context, job *models.Job) (*models.Job, error) {
	if _, exists := f.jobs[job.ID]; exists {
		return nil, store.ErrConflict
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context, filter models.Filter) ([]*models.Job, error) {
	var out []*models.Job
	for _, job := range f.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, job *models.Job) (*models.Job, error) {
	if _, ok := f.jobs[id]; !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	f.jobs[id] = &cp
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status state.Status, errMsg *string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	job.Status = status
	job.ErrorMessage = errMsg
	cp := *job
	return &cp, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.jobs, id)
	return job, nil
}

func (f *fakeStore) RecordRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	job.LastRun = &lastRun
	job.NextRun = nextRun
	job.ErrorMessage = nil
	cp := *job
	return &cp, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeQueue is an in-memory Queue double tracking what is registered under
// each key, so tests can assert on Coordinator/Queue consistency directly.
type fakeQueue struct {
	delayed   map[string]time.Time
	repeating map[string]queue.RegisteredPlan
	dlq       map[string]queue.DLQEntry
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		delayed:   make(map[string]time.Time),
		repeating: make(map[string]queue.RegisteredPlan),
		dlq:       make(map[string]queue.DLQEntry),
	}
}

func (f *fakeQueue) EnqueueDelayed(ctx context.Context, key string, at time.Time, envelope models.DispatchEnvelope) error {
	delete(f.repeating, key)
	f.delayed[key] = at
	return nil
}

func (f *fakeQueue) EnqueueRepeating(ctx context.Context, plan queue.RegisteredPlan) error {
	delete(f.delayed, plan.Key)
	f.repeating[plan.Key] = plan
	return nil
}

func (f *fakeQueue) Remove(ctx context.Context, key string) error {
	delete(f.delayed, key)
	delete(f.repeating, key)
	return nil
}

func (f *fakeQueue) Consume(ctx context.Context, handler queue.Handler) error { return nil }

func (f *fakeQueue) EnqueueDLQ(ctx context.Context, entry queue.DLQEntry) error {
	f.dlq[entry.JobID] = entry
	return nil
}

func (f *fakeQueue) RemoveDLQ(ctx context.Context, jobID string) error {
	delete(f.dlq, jobID)
	return nil
}

func (f *fakeQueue) ListDLQ(ctx context.Context) ([]queue.DLQEntry, error) {
	var out []queue.DLQEntry
	for _, e := range f.dlq {
		out = append(out, e)
	}
	return out, nil
}

func newCoordinator() (*Coordinator, *fakeStore, *fakeQueue) {
	st := newFakeStore()
	q := newFakeQueue()
	return New(st, q, zap.NewNop()), st, q
}

func cronInput(target string) JobInput {
	return JobInput{
		Name:           "sync",
		Target:         target,
		Payload:        []byte(`{"a":1}`),
		ScheduleType:   models.ScheduleCron,
		CronExpression: "*/5 * * * *",
	}
}

func TestCreate_Cron_RegistersRepeating(t *testing.T) {
	c, _, q := newCoordinator()
	job, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Contains(t, q.repeating, job.ID)
	assert.NotContains(t, q.delayed, job.ID)
}

func TestCreate_SpecificTimeFuture_EnqueuesDelayed(t *testing.T) {
	c, _, q := newCoordinator()
	future := time.Now().Add(time.Hour)
	input := JobInput{
		Name:         "one-shot",
		Target:       "https://example.com/hook",
		Payload:      []byte(`{}`),
		ScheduleType: models.ScheduleSpecificTime,
		SpecificTime: &future,
	}
	job, err := c.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, q.delayed, job.ID)
}

func TestCreate_SpecificTimePast_StaysRowDormantNoEnqueue(t *testing.T) {
	c, st, q := newCoordinator()
	past := time.Now().Add(-time.Hour)
	input := JobInput{
		Name:         "stale",
		Target:       "https://example.com/hook",
		Payload:      []byte(`{}`),
		ScheduleType: models.ScheduleSpecificTime,
		SpecificTime: &past,
	}
	job, err := c.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, job.NextRun)
	assert.NotContains(t, q.delayed, job.ID)
	assert.Contains(t, st.jobs, job.ID, "the row is created, just dormant")
}

func TestCreate_RecurringMonth_SchedulesBareDelayedEntry(t *testing.T) {
	c, _, q := newCoordinator()
	input := JobInput{
		Name:          "monthly",
		Target:        "https://example.com/hook",
		Payload:       []byte(`{}`),
		ScheduleType:  models.ScheduleRecurring,
		Interval:      models.IntervalMonth,
		IntervalValue: 1,
	}
	job, err := c.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, q.delayed, job.ID)
	assert.NotContains(t, q.repeating, job.ID, "MONTH/YEAR has no fixed-duration repeat plan")
}

func TestCreate_RecurringFixedDuration_RegistersRepeating(t *testing.T) {
	c, _, q := newCoordinator()
	input := JobInput{
		Name:          "hourly",
		Target:        "https://example.com/hook",
		Payload:       []byte(`{}`),
		ScheduleType:  models.ScheduleRecurring,
		Interval:      models.IntervalHour,
		IntervalValue: 1,
	}
	job, err := c.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Contains(t, q.repeating, job.ID)
}

func TestCreate_InvalidSchedule_RejectsBadCron(t *testing.T) {
	c, _, _ := newCoordinator()
	input := cronInput("https://example.com/hook")
	input.CronExpression = "not a cron"
	_, err := c.Create(context.Background(), input)
	require.Error(t, err)
}

func TestCreate_InvalidTarget_Rejected(t *testing.T) {
	c, _, _ := newCoordinator()
	input := cronInput("not-a-url")
	_, err := c.Create(context.Background(), input)
	require.Error(t, err)
}

func TestCreate_PayloadExactly1MiB_Accepted(t *testing.T) {
	c, _, _ := newCoordinator()
	input := cronInput("https://example.com/hook")
	input.Payload = make([]byte, 1<<20)
	_, err := c.Create(context.Background(), input)
	assert.NoError(t, err)
}

func TestCreate_PayloadOverOneMiB_Rejected(t *testing.T) {
	c, _, _ := newCoordinator()
	input := cronInput("https://example.com/hook")
	input.Payload = make([]byte, (1<<20)+1)
	_, err := c.Create(context.Background(), input)
	assert.Error(t, err)
}

func TestUpdate_ChangesScheduleAndRemovesOldRegistration(t *testing.T) {
	c, _, q := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	require.Contains(t, q.repeating, created.ID)

	future := time.Now().Add(2 * time.Hour)
	updateInput := JobInput{
		Name:         "sync",
		Target:       "https://example.com/hook",
		Payload:      []byte(`{}`),
		ScheduleType: models.ScheduleSpecificTime,
		SpecificTime: &future,
	}
	updated, err := c.Update(context.Background(), created.ID, updateInput)
	require.NoError(t, err)
	assert.NotContains(t, q.repeating, created.ID)
	assert.Contains(t, q.delayed, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt, "created_at survives an update")
}

func TestUpdate_WritesRequestedStatus(t *testing.T) {
	c, st, _ := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	st.jobs[created.ID].Status = state.StatusFailed

	input := cronInput("https://example.com/hook")
	input.Status = state.StatusInactive
	updated, err := c.Update(context.Background(), created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, state.StatusInactive, updated.Status, "Update writes whatever status the request carries")
}

func TestUpdate_DefaultsStatusToActiveWhenAbsent(t *testing.T) {
	c, st, _ := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	st.jobs[created.ID].Status = state.StatusFailed

	updated, err := c.Update(context.Background(), created.ID, cronInput("https://example.com/hook"))
	require.NoError(t, err)
	assert.Equal(t, state.StatusActive, updated.Status, "Update with no status in the request moves a FAILED job back to ACTIVE, bypassing Reactivate")
}

func TestUpdate_MissingJobIsNotFound(t *testing.T) {
	c, _, _ := newCoordinator()
	_, err := c.Update(context.Background(), "missing", cronInput("https://example.com/hook"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete_RemovesStoreQueueAndDLQ(t *testing.T) {
	c, st, q := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	q.dlq[created.ID] = queue.DLQEntry{JobID: created.ID}

	_, err = c.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotContains(t, st.jobs, created.ID)
	assert.NotContains(t, q.repeating, created.ID)
	assert.NotContains(t, q.dlq, created.ID)
}

func TestDelete_SecondDeleteIsNotFound(t *testing.T) {
	c, _, _ := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	_, err = c.Delete(context.Background(), created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "the Store delete is not idempotent, matching spec.md's NotFound on a second delete")
}

func TestRunNow_EnqueuesManualKeyDistinctFromJobID(t *testing.T) {
	c, _, q := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)

	err = c.RunNow(context.Background(), created.ID)
	require.NoError(t, err)

	foundManual := false
	for key := range q.delayed {
		if key != created.ID {
			foundManual = true
		}
	}
	assert.True(t, foundManual, "RunNow must not collide with the job's own registration key")
	assert.Contains(t, q.repeating, created.ID, "RunNow does not disturb the normal schedule registration")
}

func TestToggleStatus_StoreOnlyQueueUntouched(t *testing.T) {
	c, _, q := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)

	updated, err := c.ToggleStatus(context.Background(), created.ID, state.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, state.StatusInactive, updated.Status)
	assert.Contains(t, q.repeating, created.ID, "toggling status does not remove the queue registration")
}

func TestToggleStatus_InvalidTransitionRejected(t *testing.T) {
	c, st, _ := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)

	_, err = c.ToggleStatus(context.Background(), created.ID, state.StatusFailed)
	assert.Error(t, err, "ACTIVE -> FAILED is reached only by the Worker's own failure path, not by ToggleStatus")

	// FAILED is only reachable here by writing the Store directly, the way
	// the Worker's fail() path does, since ToggleStatus itself can never produce it.
	st.jobs[created.ID].Status = state.StatusFailed

	_, err = c.ToggleStatus(context.Background(), created.ID, state.StatusInactive)
	assert.Error(t, err, "FAILED -> INACTIVE is not a valid transition")
}

func TestToggleStatus_FailedToActiveRejected(t *testing.T) {
	c, st, _ := newCoordinator()
	created, err := c.Create(context.Background(), cronInput("https://example.com/hook"))
	require.NoError(t, err)

	st.jobs[created.ID].Status = state.StatusFailed

	_, err = c.ToggleStatus(context.Background(), created.ID, state.StatusActive)
	assert.Error(t, err, "FAILED -> ACTIVE must go through Reactivate, not ToggleStatus")
}
