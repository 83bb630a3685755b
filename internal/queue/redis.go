package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"gofire/internal/constants"
	"gofire/internal/lock"
	"gofire/internal/logging"
	"gofire/internal/models"
	"gofire/internal/schedule"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
)

// RedisQueue is the Dispatch Queue backed by Redis, grounded on GoFire's
// internal/app/cron_job_manager.go (semaphore-bounded dispatch loop,
// per-tick advisory lock acquisition) and internal/app/enqueue_scheduler.go.
type RedisQueue struct {
	client       *redis.Client
	log          *zap.Logger
	pollInterval time.Duration
	batchSize    int64

	delayedZSet   string
	delayedIndex  string
	repeatingHash string
	dlqHash       string
}

// NewRedisQueue wires a Dispatch Queue against an already-connected
// go-redis client.
func NewRedisQueue(client *redis.Client, log *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:        client,
		log:           log,
		pollInterval:  defaultPollInterval,
		batchSize:     defaultBatchSize,
		delayedZSet:   constants.RedisDelayedZSet,
		delayedIndex:  constants.RedisDelayedZSet + ":index",
		repeatingHash: constants.RedisRepeatingHash,
		dlqHash:       constants.RedisDLQHash,
	}
}

func (q *RedisQueue) EnqueueDelayed(ctx context.Context, key string, at time.Time, envelope models.DispatchEnvelope) error {
	return q.enqueueDelayedEntry(ctx, delayedEntry{Key: key, At: at, Envelope: envelope, Attempt: 0})
}

func (q *RedisQueue) enqueueDelayedEntry(ctx context.Context, entry delayedEntry) error {
	member, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.delayedZSet, redis.Z{
			Score:  float64(entry.At.UnixMilli()),
			Member: string(member),
		})
		pipe.HSet(ctx, q.delayedIndex, entry.Key, string(member))
		return nil
	})
	return err
}

func (q *RedisQueue) EnqueueRepeating(ctx context.Context, plan RegisteredPlan) error {
	b, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, q.repeatingHash, plan.Key, string(b)).Err()
}

// Remove cancels any pending registration under key, whether a delayed
// one-shot or a repeating registration.
func (q *RedisQueue) Remove(ctx context.Context, key string) error {
	member, err := q.client.HGet(ctx, q.delayedIndex, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil {
		if _, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.delayedZSet, member)
			pipe.HDel(ctx, q.delayedIndex, key)
			return nil
		}); err != nil {
			return err
		}
	}
	return q.client.HDel(ctx, q.repeatingHash, key).Err()
}

// Consume runs the poll loop: pop due delayed entries race-safely and
// dispatch each to handler on a semaphore-bounded goroutine, per spec.md
// §4.3/§5 ("nothing blocks the whole pool on one job's backoff").
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	sem := semaphore.NewWeighted(constants.WorkerConcurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			entries, err := q.popDue(ctx, time.Now())
			if err != nil {
				q.log.Warn("dispatch queue poll failed", zap.Error(err))
				continue
			}
			for _, entry := range entries {
				if err := sem.Acquire(ctx, 1); err != nil {
					break
				}
				wg.Add(1)
				go func(e delayedEntry) {
					defer sem.Release(1)
					defer wg.Done()
					q.dispatch(ctx, e, handler)
				}(entry)
			}
		}
	}
}

// popDue atomically pops every delayed entry due at or before at, using
// WATCH/MULTI so concurrent consumers never double-deliver the same entry.
func (q *RedisQueue) popDue(ctx context.Context, at time.Time) ([]delayedEntry, error) {
	var entries []delayedEntry

	err := q.client.Watch(ctx, func(tx *redis.Tx) error {
		members, err := tx.ZRangeByScoreWithScores(ctx, q.delayedZSet, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(at.UnixMilli(), 10),
			Count: q.batchSize,
		}).Result()
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, m := range members {
				member, ok := m.Member.(string)
				if !ok {
					continue
				}
				pipe.ZRem(ctx, q.delayedZSet, member)

				var entry delayedEntry
				if jsonErr := json.Unmarshal([]byte(member), &entry); jsonErr != nil {
					q.log.Warn("dropping malformed dispatch entry", zap.Error(jsonErr))
					continue
				}
				pipe.HDel(ctx, q.delayedIndex, entry.Key)
				entries = append(entries, entry)
			}
			return nil
		})
		return err
	}, q.delayedZSet)

	return entries, err
}

// dispatch invokes handler once and, on failure, re-delivers with
// exponential backoff up to QueueMaxAttempts. Per spec.md §4.3 the queue
// never places entries in the DLQ itself — that classification and
// placement happens inside the Worker (step 7 of its delivery procedure)
// before it re-raises the error here, so a handler failure that has
// already been dead-lettered just drains its remaining queue attempts with
// no further effect.
func (q *RedisQueue) dispatch(ctx context.Context, entry delayedEntry, handler Handler) {
	err := handler(ctx, entry.Envelope)
	if err == nil {
		return
	}

	entry.Attempt++
	if entry.Attempt >= constants.QueueMaxAttempts {
		q.log.Warn("dispatch entry exhausted queue retry attempts",
			zap.String(logging.FieldJobID, entry.Envelope.JobID), zap.Error(err))
		return
	}

	entry.At = time.Now().Add(computeBackoff(entry.Attempt))

	if err := q.enqueueDelayedEntry(ctx, entry); err != nil {
		q.log.Error("failed to re-enqueue dispatch entry after failure",
			zap.String(logging.FieldJobID, entry.Envelope.JobID), zap.Error(err))
	}
}

// computeBackoff returns the outer retry delay for a given attempt number
// (1-indexed), per spec.md §4.3: 1s initial, factor 2, e.g. 1s, 2s, 4s.
func computeBackoff(attempt int) time.Duration {
	backoff := time.Duration(constants.QueueInitialBackoff) * time.Second
	for i := 1; i < attempt; i++ {
		backoff *= constants.QueueBackoffFactor
	}
	return backoff
}

func (q *RedisQueue) EnqueueDLQ(ctx context.Context, entry DLQEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, q.dlqHash, entry.JobID, string(b)).Err()
}

func (q *RedisQueue) RemoveDLQ(ctx context.Context, jobID string) error {
	return q.client.HDel(ctx, q.dlqHash, jobID).Err()
}

func (q *RedisQueue) ListDLQ(ctx context.Context) ([]DLQEntry, error) {
	raw, err := q.client.HGetAll(ctx, q.dlqHash).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]DLQEntry, 0, len(raw))
	for _, v := range raw {
		var entry DLQEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RunRepeatingArmer is the singleton background loop that keeps exactly one
// delayed entry armed per repeating registration, re-arming after each
// dispatch clears the previous one (spec.md §4.3's repeating-hash design).
// Guarded by a Postgres advisory lock so only one process instance runs it.
func (q *RedisQueue) RunRepeatingArmer(ctx context.Context, locker lock.DistributedLockManager) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := q.armDue(ctx, locker); err != nil {
				q.log.Warn("repeating armer tick failed", zap.Error(err))
			}
		}
	}
}

func (q *RedisQueue) armDue(ctx context.Context, locker lock.DistributedLockManager) error {
	if err := locker.Acquire(constants.LockRepeatingArmer); err != nil {
		return fmt.Errorf("acquire repeating armer lock: %w", err)
	}
	defer locker.Release(constants.LockRepeatingArmer)

	raw, err := q.client.HGetAll(ctx, q.repeatingHash).Result()
	if err != nil {
		return err
	}

	for key, v := range raw {
		var plan RegisteredPlan
		if err := json.Unmarshal([]byte(v), &plan); err != nil {
			q.log.Warn("dropping malformed repeating registration", zap.String(logging.FieldDispatchKey, key))
			continue
		}

		armed, err := q.client.HExists(ctx, q.delayedIndex, key).Result()
		if err != nil || armed {
			continue
		}

		next := q.nextOccurrence(plan, time.Now())
		if next == nil {
			continue
		}
		if err := q.enqueueDelayedEntry(ctx, delayedEntry{Key: key, At: *next, Envelope: plan.Envelope}); err != nil {
			q.log.Error("failed to arm repeating registration",
				zap.String(logging.FieldDispatchKey, key), zap.Error(err))
		}
	}
	return nil
}

func (q *RedisQueue) nextOccurrence(plan RegisteredPlan, from time.Time) *time.Time {
	if plan.Cron != "" {
		sched, err := schedule.ParseCron(plan.Cron)
		if err != nil {
			return nil
		}
		next := sched.Next(from)
		return &next
	}
	if plan.EveryMS > 0 {
		next := from.Add(time.Duration(plan.EveryMS) * time.Millisecond)
		return &next
	}
	return nil
}
