package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffPolicy_FixedDelay(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffFixed, BaseDelay: 3 * time.Second}

	assert.Equal(t, 3*time.Second, policy.Delay(1))
	assert.Equal(t, 3*time.Second, policy.Delay(2))
	assert.Equal(t, 3*time.Second, policy.Delay(10))
}

func TestBackoffPolicy_ExponentialDelay(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, BaseDelay: 2 * time.Second}

	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, 8*time.Second, policy.Delay(3))
	assert.Equal(t, 16*time.Second, policy.Delay(4))
}

func TestBackoffPolicy_ExponentialDelayIsCapped(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, BaseDelay: time.Minute}

	assert.Equal(t, time.Hour, policy.Delay(30))
}

func TestBackoffPolicy_AttemptBelowOne(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, BaseDelay: 2 * time.Second}

	assert.Equal(t, 2*time.Second, policy.Delay(0))
	assert.Equal(t, 2*time.Second, policy.Delay(-5))
}

func TestNewJob(t *testing.T) {
	backoff := BackoffPolicy{Kind: BackoffExponential, BaseDelay: 2 * time.Second}
	job, err := NewJob(QueueEmail, TypeOrderConfirmationEmail, map[string]string{"order_id": "ord-1"}, 3, backoff)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueEmail, job.Queue)
	assert.Equal(t, TypeOrderConfirmationEmail, job.Type)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, backoff, job.Backoff)
	assert.JSONEq(t, `{"order_id":"ord-1"}`, string(job.Payload))
}

func TestNewJob_UnmarshalablePayload(t *testing.T) {
	_, err := NewJob(QueueEmail, TypeOrderConfirmationEmail, make(chan int), 3, BackoffPolicy{})
	require.Error(t, err)
}

func TestNames_CoversEveryQueue(t *testing.T) {
	names := Names()
	assert.Len(t, names, 7)
	assert.Contains(t, names, QueueEmail)
	assert.Contains(t, names, QueuePush)
	assert.Contains(t, names, QueueShipping)
	assert.Contains(t, names, QueuePayment)
	assert.Contains(t, names, QueueSearch)
	assert.Contains(t, names, QueueAnalytics)
	assert.Contains(t, names, QueueImage)
}
