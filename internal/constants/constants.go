package constants

// Advisory lock IDs. Each singleton background loop (the repeating-plan
// re-armer, the reconciler) acquires its own lock ID so only one process
// instance runs that loop at a time.
const (
	LockRepeatingArmer = iota + 1
	LockReconciler
)

var Locks = []int{
	LockRepeatingArmer,
	LockReconciler,
}

// Queue retry policy: bounded exponential backoff applied by the Dispatch
// Queue around a handler invocation.
const (
	QueueMaxAttempts    = 3
	QueueInitialBackoff = 1 // seconds
	QueueBackoffFactor  = 2
)

// Worker inner retry policy.
const (
	WorkerMaxAttempts    = 3
	WorkerMinBackoffSecs = 1
	WorkerMaxBackoffSecs = 30
)

// Delivery constraints.
const (
	MaxPayloadBytes   = 1 << 20 // 1 MiB
	DeliveryTimeout   = 30      // seconds
	MaxRedirects      = 5
	UserAgent         = "gofire-scheduler/1.0"
	WorkerConcurrency = 5
)

// Redis key names backing the Dispatch Queue.
const (
	RedisDelayedZSet   = "gofire:queue:delayed"
	RedisRepeatingHash = "gofire:queue:repeating"
	RedisDLQHash       = "gofire:queue:dlq"
)

// ManualRunKeySuffix marks a RunNow dispatch entry so it never collides
// with the Job's normal scheduled registration.
const ManualRunKeySuffix = "-manual-"
