package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Named queues of the pipeline. Each queue has its own worker pool.
const (
	QueueEmail     = "email"
	QueuePush      = "push"
	QueueShipping  = "shipping"
	QueuePayment   = "payment"
	QueueSearch    = "search"
	QueueAnalytics = "analytics"
	QueueImage     = "image"
)

// Names lists every queue the runtime is expected to drain.
func Names() []string {
	return []string{
		QueueEmail, QueuePush, QueueShipping, QueuePayment,
		QueueSearch, QueueAnalytics, QueueImage,
	}
}

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// BackoffPolicy is attached to a job at enqueue time and never re-derived
// by handlers.
type BackoffPolicy struct {
	Kind      string        `json:"kind"`
	BaseDelay time.Duration `json:"base_delay"`
}

const maxBackoffDelay = time.Hour

// Delay returns the re-delivery delay after the given attempt (1-based).
// Exponential policy doubles per attempt: base * 2^(attempt-1).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	if p.Kind == BackoffExponential {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay >= maxBackoffDelay {
				return maxBackoffDelay
			}
		}
	}
	return delay
}

// Job is one unit of queued work. It is owned by the queue store from
// enqueue until Ack, Retry or Bury.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     BackoffPolicy   `json:"backoff"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// PriorityHigh jobs are delivered ahead of normally enqueued work.
const PriorityHigh = 10

func NewJob(queueName, jobType string, payload interface{}, maxAttempts int, backoff BackoffPolicy) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Type:        jobType,
		Payload:     raw,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		EnqueuedAt:  time.Now(),
	}, nil
}

// Queue is the durable queue store contract. Implementations are
// at-least-once: a job dequeued but never acked is recoverable.
type Queue interface {
	// Enqueue makes the job immediately available on its named queue.
	Enqueue(ctx context.Context, job *Job) error

	// EnqueueIn makes the job available after the given delay.
	EnqueueIn(ctx context.Context, job *Job, delay time.Duration) error

	// Dequeue claims the next job from the named queue, waiting up to
	// timeout. Returns (nil, nil) when the queue stays empty.
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error)

	// Ack removes a successfully processed job.
	Ack(ctx context.Context, job *Job) error

	// Retry re-queues a failed job with attempts incremented, delivered
	// again after delay. A job already out of attempts is buried instead.
	Retry(ctx context.Context, job *Job, delay time.Duration, cause string) error

	// Bury moves the job to the dead-letter state for operator inspection.
	// Buried jobs are never silently dropped.
	Bury(ctx context.Context, job *Job, cause string) error

	// DeadLettered returns up to limit dead-lettered jobs of a queue.
	DeadLettered(ctx context.Context, queueName string, limit int) ([]*Job, error)

	// Depth reports the number of jobs waiting (ready plus delayed).
	Depth(ctx context.Context, queueName string) (int64, error)
}
