package lock

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofire/internal/constants"
)

func TestNewPostgresDistributedLockManager(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)
	require.NotNil(t, mgr)
}

func TestPostgresDistributedLockManager_Acquire_RepeatingArmerLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(constants.LockRepeatingArmer).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, mgr.Acquire(constants.LockRepeatingArmer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Acquire_ReconcilerLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(constants.LockReconciler).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, mgr.Acquire(constants.LockReconciler))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Acquire_PropagatesDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(constants.LockReconciler).
		WillReturnError(sql.ErrConnDone)

	err = mgr.Acquire(constants.LockReconciler)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Release_RepeatingArmerLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(constants.LockRepeatingArmer).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, mgr.Release(constants.LockRepeatingArmer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDistributedLockManager_Release_PropagatesDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(constants.LockReconciler).
		WillReturnError(sql.ErrConnDone)

	err = mgr.Release(constants.LockReconciler)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to release lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresDistributedLockManager_ReleaseAllOnShutdown mirrors the
// process entrypoint's shutdown sequence, which releases every lock ID in
// constants.Locks unconditionally on the way out.
func TestPostgresDistributedLockManager_ReleaseAllOnShutdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mgr := NewPostgresDistributedLockManager(db)

	for _, id := range constants.Locks {
		mock.ExpectExec("SELECT pg_advisory_unlock").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	for _, id := range constants.Locks {
		assert.NoError(t, mgr.Release(id))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
