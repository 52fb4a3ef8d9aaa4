package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace/internal/queue"
)

const (
	readySuffix    = ":ready"
	delayedSuffix  = ":delayed"
	inflightSuffix = ":inflight"
	deadSuffix     = ":dead"

	keyPrefix    = "queue:"
	pollInterval = 100 * time.Millisecond
	promoteBatch = 100
)

// promoteScript atomically moves due jobs from the delayed zset to the
// ready list. Runs before every poll so delayed retries become visible
// without a separate scheduler process.
var promoteScript = redis.NewScript(`
local delayed = KEYS[1]
local ready = KEYS[2]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local due = redis.call('ZRANGEBYSCORE', delayed, '-inf', now, 'LIMIT', 0, limit)
for _, payload in ipairs(due) do
	redis.call('LPUSH', ready, payload)
	redis.call('ZREM', delayed, payload)
end

return #due
`)

// Queue is a Redis-backed durable queue store. Per named queue it keeps a
// ready list, a delayed zset scored by fire time, an in-flight hash keyed
// by job id, and a dead-letter list.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

func New(client *redis.Client, l *zap.Logger) *Queue {
	return &Queue{client: client, logger: l}
}

func readyKey(q string) string    { return keyPrefix + q + readySuffix }
func delayedKey(q string) string  { return keyPrefix + q + delayedSuffix }
func inflightKey(q string) string { return keyPrefix + q + inflightSuffix }
func deadKey(q string) string     { return keyPrefix + q + deadSuffix }

func (r *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	// High-priority jobs go to the consuming end of the list so they are
	// delivered before normally enqueued work.
	if job.Priority >= queue.PriorityHigh {
		err = r.client.RPush(ctx, readyKey(job.Queue), payload).Err()
	} else {
		err = r.client.LPush(ctx, readyKey(job.Queue), payload).Err()
	}
	if err != nil {
		return fmt.Errorf("enqueue job %s on %s: %w", job.ID, job.Queue, err)
	}

	r.logger.Debug("Job enqueued",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue),
		zap.String("type", job.Type))
	return nil
}

func (r *Queue) EnqueueIn(ctx context.Context, job *queue.Job, delay time.Duration) error {
	if delay <= 0 {
		return r.Enqueue(ctx, job)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	fireAt := float64(time.Now().Add(delay).UnixMilli())
	if err := r.client.ZAdd(ctx, delayedKey(job.Queue), redis.Z{Score: fireAt, Member: payload}).Err(); err != nil {
		return fmt.Errorf("enqueue delayed job %s on %s: %w", job.ID, job.Queue, err)
	}

	r.logger.Debug("Job enqueued with delay",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue),
		zap.Duration("delay", delay))
	return nil
}

// Dequeue polls the ready list after promoting due delayed jobs. The poll
// loop (instead of BRPOP) keeps promotion and consumption in one goroutine.
func (r *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.promote(ctx, queueName); err != nil {
			return nil, err
		}

		payload, err := r.client.RPop(ctx, readyKey(queueName)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("dequeue from %s: %w", queueName, err)
		}
		if err == nil {
			job := &queue.Job{}
			if unmarshalErr := json.Unmarshal([]byte(payload), job); unmarshalErr != nil {
				// A payload this store cannot read is never retried; it is
				// parked for inspection under a synthetic id.
				r.logger.Error("Dropping unreadable job payload to dead-letter",
					zap.String("queue", queueName),
					zap.Error(unmarshalErr))
				if pushErr := r.client.LPush(ctx, deadKey(queueName), payload).Err(); pushErr != nil {
					// The blob is already off the ready list; keep it in the
					// log so it is recoverable by hand.
					r.logger.Error("Failed to park unreadable payload, dumping it",
						zap.String("queue", queueName),
						zap.String("payload", payload),
						zap.Error(pushErr))
				}
				continue
			}
			if err := r.client.HSet(ctx, inflightKey(queueName), job.ID, payload).Err(); err != nil {
				return nil, fmt.Errorf("mark job %s in-flight: %w", job.ID, err)
			}
			return job, nil
		}

		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (r *Queue) promote(ctx context.Context, queueName string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	err := promoteScript.Run(ctx, r.client,
		[]string{delayedKey(queueName), readyKey(queueName)},
		now, promoteBatch).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("promote delayed jobs on %s: %w", queueName, err)
	}
	return nil
}

func (r *Queue) Ack(ctx context.Context, job *queue.Job) error {
	if err := r.client.HDel(ctx, inflightKey(job.Queue), job.ID).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	r.logger.Debug("Job acked",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue))
	return nil
}

func (r *Queue) Retry(ctx context.Context, job *queue.Job, delay time.Duration, cause string) error {
	if job.Attempts+1 >= job.MaxAttempts {
		return r.Bury(ctx, job, cause)
	}

	retried := *job
	retried.Attempts = job.Attempts + 1
	retried.LastError = cause

	if err := r.EnqueueIn(ctx, &retried, delay); err != nil {
		return fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	if err := r.client.HDel(ctx, inflightKey(job.Queue), job.ID).Err(); err != nil {
		return fmt.Errorf("clear in-flight job %s: %w", job.ID, err)
	}

	r.logger.Warn("Job scheduled for retry",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue),
		zap.String("type", job.Type),
		zap.Int("attempt", retried.Attempts),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("delay", delay),
		zap.String("cause", cause))
	return nil
}

func (r *Queue) Bury(ctx context.Context, job *queue.Job, cause string) error {
	buried := *job
	buried.Attempts = job.Attempts + 1
	buried.LastError = cause

	payload, err := json.Marshal(&buried)
	if err != nil {
		return fmt.Errorf("marshal buried job %s: %w", job.ID, err)
	}
	if err := r.client.LPush(ctx, deadKey(job.Queue), payload).Err(); err != nil {
		return fmt.Errorf("bury job %s: %w", job.ID, err)
	}
	if err := r.client.HDel(ctx, inflightKey(job.Queue), job.ID).Err(); err != nil {
		return fmt.Errorf("clear in-flight job %s: %w", job.ID, err)
	}

	r.logger.Error("Job dead-lettered",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue),
		zap.String("type", job.Type),
		zap.Int("attempts", buried.Attempts),
		zap.String("cause", cause))
	return nil
}

func (r *Queue) DeadLettered(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	payloads, err := r.client.LRange(ctx, deadKey(queueName), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead-lettered jobs on %s: %w", queueName, err)
	}

	jobs := make([]*queue.Job, 0, len(payloads))
	for _, payload := range payloads {
		job := &queue.Job{}
		if err := json.Unmarshal([]byte(payload), job); err != nil {
			r.logger.Warn("Skipping unreadable dead-lettered payload",
				zap.String("queue", queueName),
				zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *Queue) Depth(ctx context.Context, queueName string) (int64, error) {
	ready, err := r.client.LLen(ctx, readyKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("ready depth of %s: %w", queueName, err)
	}
	delayed, err := r.client.ZCard(ctx, delayedKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("delayed depth of %s: %w", queueName, err)
	}
	return ready + delayed, nil
}

// RecoverInFlight re-queues jobs that were claimed but never resolved, e.g.
// after a worker crash. Called once on runtime startup.
func (r *Queue) RecoverInFlight(ctx context.Context, queueName string) (int, error) {
	payloads, err := r.client.HGetAll(ctx, inflightKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("list in-flight jobs on %s: %w", queueName, err)
	}

	recovered := 0
	for jobID, payload := range payloads {
		if err := r.client.LPush(ctx, readyKey(queueName), payload).Err(); err != nil {
			return recovered, fmt.Errorf("requeue in-flight job %s: %w", jobID, err)
		}
		if err := r.client.HDel(ctx, inflightKey(queueName), jobID).Err(); err != nil {
			return recovered, fmt.Errorf("clear in-flight job %s: %w", jobID, err)
		}
		recovered++
	}

	if recovered > 0 {
		r.logger.Warn("Recovered in-flight jobs",
			zap.String("queue", queueName),
			zap.Int("count", recovered))
	}
	return recovered, nil
}
