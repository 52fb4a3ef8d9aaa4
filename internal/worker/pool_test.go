package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace/internal/queue"
)

// fakeQueue is an in-memory queue store recording every outcome the pool
// reports. Retry re-enqueues immediately regardless of delay so tests don't
// wait out backoff schedules.
type fakeQueue struct {
	mu          sync.Mutex
	jobs        chan *queue.Job
	acked       []*queue.Job
	buried      []*queue.Job
	buryCauses  []string
	retryDelays []time.Duration
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(chan *queue.Job, 64)}
}

func (f *fakeQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	f.jobs <- job
	return nil
}

func (f *fakeQueue) EnqueueIn(ctx context.Context, job *queue.Job, delay time.Duration) error {
	f.jobs <- job
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error) {
	select {
	case job := <-f.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (f *fakeQueue) Ack(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, job)
	return nil
}

func (f *fakeQueue) Retry(ctx context.Context, job *queue.Job, delay time.Duration, cause string) error {
	f.mu.Lock()
	f.retryDelays = append(f.retryDelays, delay)
	f.mu.Unlock()

	retried := *job
	retried.Attempts = job.Attempts + 1
	retried.LastError = cause
	f.jobs <- &retried
	return nil
}

func (f *fakeQueue) Bury(ctx context.Context, job *queue.Job, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buried = append(f.buried, job)
	f.buryCauses = append(f.buryCauses, cause)
	return nil
}

func (f *fakeQueue) DeadLettered(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*queue.Job(nil), f.buried...), nil
}

func (f *fakeQueue) Depth(ctx context.Context, queueName string) (int64, error) {
	return int64(len(f.jobs)), nil
}

func (f *fakeQueue) ackedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked)
}

func (f *fakeQueue) buriedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buried)
}

func (f *fakeQueue) delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.retryDelays...)
}

func testPoolConfig() PoolConfig {
	return PoolConfig{
		QueueName:    queue.QueueEmail,
		Concurrency:  1,
		DequeueWait:  20 * time.Millisecond,
		JobTimeout:   time.Second,
		ErrorBackoff: 10 * time.Millisecond,
	}
}

func startPool(t *testing.T, store *fakeQueue, registry *Registry) *Pool {
	t.Helper()
	pool, err := NewPool(testPoolConfig(), store, registry, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = pool.Stop(stopCtx)
		cancel()
	})
	return pool
}

func enqueueTestJob(t *testing.T, store *fakeQueue, jobType string, maxAttempts int) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.QueueEmail, jobType, map[string]string{"k": "v"}, maxAttempts,
		queue.BackoffPolicy{Kind: queue.BackoffExponential, BaseDelay: 2 * time.Second})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), job))
	return job
}

func TestPool_SuccessfulJobIsAcked(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	var invocations int32
	var mu sync.Mutex
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		mu.Lock()
		invocations++
		mu.Unlock()
		return nil
	}))

	enqueueTestJob(t, store, "send", 3)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.ackedCount() == 1 }, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), invocations)
}

func TestPool_TransientFailureRetriesWithGrowingBackoff(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	var mu sync.Mutex
	invocations := 0
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		invocations++
		if invocations <= 2 {
			return errors.New("smtp unavailable")
		}
		return nil
	}))

	enqueueTestJob(t, store, "send", 5)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.ackedCount() == 1 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, invocations)
	mu.Unlock()

	// Delay derives from the attempt number: base*2^(attempt-1).
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, store.delays())
	assert.Equal(t, 0, store.buriedCount())
}

func TestPool_ExhaustedRetryBudgetBuries(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	var mu sync.Mutex
	invocations := 0
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		invocations++
		return errors.New("permanent smtp outage")
	}))

	enqueueTestJob(t, store, "send", 2)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.buriedCount() == 1 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, invocations)
	mu.Unlock()
	assert.Equal(t, 0, store.ackedCount())
}

func TestPool_TerminalOutcomeAcksWithoutRetry(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	var mu sync.Mutex
	invocations := 0
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		invocations++
		return Terminal(errors.New("no device token"))
	}))

	enqueueTestJob(t, store, "send", 5)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.ackedCount() == 1 }, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, invocations)
	mu.Unlock()
	assert.Empty(t, store.delays())
}

func TestPool_TerminalBuryGoesToDeadLetter(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		return TerminalBury(errors.New("webhook for unknown payment"))
	}))

	enqueueTestJob(t, store, "send", 5)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.buriedCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, store.delays())
}

func TestPool_MalformedPayloadIsBuriedImmediately(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		return Malformed(errors.New("missing order_id"))
	}))

	enqueueTestJob(t, store, "send", 5)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.buriedCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, store.delays())
}

func TestPool_PanicIsTreatedAsTransientFailure(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	var mu sync.Mutex
	invocations := 0
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		invocations++
		panic("template blew up")
	}))

	enqueueTestJob(t, store, "send", 2)
	startPool(t, store, registry)

	// First attempt retries, second exhausts the budget.
	assert.Eventually(t, func() bool { return store.buriedCount() == 1 }, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2, invocations)
	mu.Unlock()
}

func TestPool_UnregisteredJobTypeIsBuried(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()
	require.NoError(t, registry.Register(queue.QueueEmail, "send", noopHandler))

	enqueueTestJob(t, store, "mystery-type", 3)
	startPool(t, store, registry)

	assert.Eventually(t, func() bool { return store.buriedCount() == 1 }, time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.buryCauses[0], "unregistered job type")
}

func TestNewPool_RequiresHandlers(t *testing.T) {
	_, err := NewPool(testPoolConfig(), newFakeQueue(), NewRegistry(), zap.NewNop())
	require.Error(t, err)
}

func TestPool_StopDrainsInFlightJob(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	started := make(chan struct{})
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		return nil
	}))

	enqueueTestJob(t, store, "send", 3)

	pool, err := NewPool(testPoolConfig(), store, registry, zap.NewNop())
	require.NoError(t, err)
	pool.Start(context.Background())

	<-started
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Stop(stopCtx))

	assert.Equal(t, 1, store.ackedCount())
}

func TestPool_StopKeepsInFlightJobContextAlive(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	started := make(chan struct{})
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	}))

	enqueueTestJob(t, store, "send", 3)

	pool, err := NewPool(testPoolConfig(), store, registry, zap.NewNop())
	require.NoError(t, err)
	pool.Start(context.Background())

	<-started
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Stop(stopCtx))

	assert.Equal(t, 1, store.ackedCount())
	assert.Equal(t, 0, store.buriedCount())
	assert.Empty(t, store.delays())
}

func TestPool_StopDeadlineCancelsInFlightJobContext(t *testing.T) {
	store := newFakeQueue()
	registry := NewRegistry()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, registry.Register(queue.QueueEmail, "send", func(ctx context.Context, job *queue.Job) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	enqueueTestJob(t, store, "send", 3)

	pool, err := NewPool(testPoolConfig(), store, registry, zap.NewNop())
	require.NoError(t, err)
	pool.Start(context.Background())

	<-started
	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, pool.Stop(stopCtx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight job context was not cancelled after the stop deadline")
	}
}
