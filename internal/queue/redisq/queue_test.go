package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace/internal/queue"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, zap.NewNop()), srv
}

func newTestJob(t *testing.T, queueName, jobType string) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queueName, jobType, map[string]string{"k": "v"}, 3,
		queue.BackoffPolicy{Kind: queue.BackoffExponential, BaseDelay: 2 * time.Second})
	require.NoError(t, err)
	return job
}

func TestEnqueueDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueueEmail, queue.TypeOrderConfirmationEmail)
	require.NoError(t, q.Enqueue(ctx, job))

	depth, err := q.Depth(ctx, queue.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	got, err := q.Dequeue(ctx, queue.QueueEmail, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Type, got.Type)

	// Claimed but not acked: still tracked in-flight, not ready.
	depth, err = q.Depth(ctx, queue.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	require.NoError(t, q.Ack(ctx, got))

	recovered, err := q.RecoverInFlight(ctx, queue.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
}

func TestDequeue_EmptyQueueReturnsNil(t *testing.T) {
	q, _ := newTestQueue(t)

	got, err := q.Dequeue(context.Background(), queue.QueueEmail, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDequeue_HighPriorityJumpsQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := newTestJob(t, queue.QueueShipping, queue.TypeGenerateLabel)
	second := newTestJob(t, queue.QueueShipping, queue.TypeGenerateLabel)
	urgent := newTestJob(t, queue.QueueShipping, queue.TypeCreateShipment)
	urgent.Priority = queue.PriorityHigh

	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	require.NoError(t, q.Enqueue(ctx, urgent))

	got, err := q.Dequeue(ctx, queue.QueueShipping, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, urgent.ID, got.ID)

	got, err = q.Dequeue(ctx, queue.QueueShipping, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx, queue.QueueShipping, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

func TestEnqueueIn_DelayedJobIsPromotedWhenDue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueuePayment, queue.TypeReconcilePayment)
	require.NoError(t, q.EnqueueIn(ctx, job, 150*time.Millisecond))

	// Not due yet.
	got, err := q.Dequeue(ctx, queue.QueuePayment, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = q.Dequeue(ctx, queue.QueuePayment, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestEnqueueIn_NonPositiveDelayIsImmediate(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueuePayment, queue.TypeReconcilePayment)
	require.NoError(t, q.EnqueueIn(ctx, job, 0))

	got, err := q.Dequeue(ctx, queue.QueuePayment, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestRetry_IncrementsAttemptsAndRecordsCause(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueueEmail, queue.TypePaymentReceivedEmail)
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx, queue.QueueEmail, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Retry(ctx, got, 0, "smtp timeout"))

	retried, err := q.Dequeue(ctx, queue.QueueEmail, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.Attempts)
	assert.Equal(t, "smtp timeout", retried.LastError)

	// Retry cleared the original in-flight claim.
	recovered, err := q.RecoverInFlight(ctx, queue.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered) // the re-dequeued copy above
}

func TestRetry_ExhaustedBudgetBuries(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueueEmail, queue.TypePaymentReceivedEmail)
	job.Attempts = 2 // third attempt is the last of three

	require.NoError(t, q.Retry(ctx, job, time.Second, "still failing"))

	dead, err := q.DeadLettered(ctx, queue.QueueEmail, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Equal(t, "still failing", dead[0].LastError)

	depth, err := q.Depth(ctx, queue.QueueEmail)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestBury_RecordsCauseAndKeepsJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueuePayment, queue.TypeReconcilePayment)
	require.NoError(t, q.Bury(ctx, job, "payment not found"))

	dead, err := q.DeadLettered(ctx, queue.QueuePayment, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, "payment not found", dead[0].LastError)
}

func TestRecoverInFlight_RequeuesClaimedJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := newTestJob(t, queue.QueueShipping, queue.TypeCreateShipment)
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx, queue.QueueShipping, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Simulated crash: the claim is never resolved.
	recovered, err := q.RecoverInFlight(ctx, queue.QueueShipping)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	again, err := q.Dequeue(ctx, queue.QueueShipping, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
}

func TestDequeue_UnreadablePayloadIsParked(t *testing.T) {
	q, srv := newTestQueue(t)
	ctx := context.Background()

	_, err := srv.Lpush("queue:email:ready", "{not json")
	require.NoError(t, err)

	got, err := q.Dequeue(ctx, queue.QueueEmail, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)

	parked, err := srv.List("queue:email:dead")
	require.NoError(t, err)
	assert.Len(t, parked, 1)
}

func TestDequeue_ContextCancellation(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx, queue.QueueEmail, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
