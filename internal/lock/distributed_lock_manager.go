// Package lock provides the distributed mutual exclusion used to guard the
// scheduler's singleton background loops, the repeating-plan armer and the
// reconciler (see gofire/internal/constants.LockRepeatingArmer and
// LockReconciler), so only one process instance runs each loop at a time.
package lock

// DistributedLockManager acquires and releases a named advisory lock,
// identified by one of the ids in gofire/internal/constants.
type DistributedLockManager interface {
	Acquire(lockID int) error
	Release(lockID int) error
}
