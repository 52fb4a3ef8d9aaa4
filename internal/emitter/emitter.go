package emitter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/queue"
)

// Retry policies attached to jobs at enqueue time. Handlers never re-derive
// them.
var (
	// Notification and best-effort jobs: 3 attempts, 2s exponential.
	notifyPolicy = policy{maxAttempts: 3, backoff: queue.BackoffPolicy{
		Kind: queue.BackoffExponential, BaseDelay: 2 * time.Second}}

	// State-advancing jobs get a longer budget: a missed transition is
	// business-visible staleness, not just a delayed notification.
	statePolicy = policy{maxAttempts: 5, backoff: queue.BackoffPolicy{
		Kind: queue.BackoffExponential, BaseDelay: 2 * time.Second}}
)

type policy struct {
	maxAttempts int
	backoff     queue.BackoffPolicy
}

// target is one fan-out destination for an event name.
type target struct {
	queueName string
	jobType   string
	priority  int
	policy    policy
}

// fanOut is the fixed, known fan-out per event name. One domain event
// becomes N independent jobs; each enqueue stands alone.
var fanOut = map[string][]target{
	domain.EventOrderCreated: {
		{queue.QueueEmail, queue.TypeOrderConfirmationEmail, 0, notifyPolicy},
		{queue.QueueSearch, queue.TypeIndexOrder, 0, notifyPolicy},
		{queue.QueueAnalytics, queue.TypeRecordEvent, 0, notifyPolicy},
	},
	domain.EventOrderPaid: {
		{queue.QueueEmail, queue.TypePaymentReceivedEmail, 0, notifyPolicy},
		{queue.QueuePush, queue.TypeOrderPaidPush, 0, notifyPolicy},
		{queue.QueueShipping, queue.TypeCreateShipment, queue.PriorityHigh, statePolicy},
		{queue.QueueAnalytics, queue.TypeRecordEvent, 0, notifyPolicy},
	},
	domain.EventOrderShipped: {
		{queue.QueueEmail, queue.TypeOrderShippedEmail, 0, notifyPolicy},
		{queue.QueuePush, queue.TypeOrderShippedPush, 0, notifyPolicy},
		{queue.QueueSearch, queue.TypeUpdateOrder, 0, notifyPolicy},
		{queue.QueueAnalytics, queue.TypeRecordEvent, 0, notifyPolicy},
	},
	domain.EventOrderDelivered: {
		{queue.QueueEmail, queue.TypeOrderDeliveredEmail, 0, notifyPolicy},
		{queue.QueuePush, queue.TypeOrderDeliveredPush, 0, notifyPolicy},
		{queue.QueuePayment, queue.TypeReleaseEscrow, 0, statePolicy},
		{queue.QueueSearch, queue.TypeUpdateOrder, 0, notifyPolicy},
		{queue.QueueAnalytics, queue.TypeRecordEvent, 0, notifyPolicy},
	},
	domain.EventOfferCreated: {
		{queue.QueuePush, queue.TypeOfferReceivedPush, 0, notifyPolicy},
		{queue.QueueEmail, queue.TypeOfferReceivedEmail, 0, notifyPolicy},
	},
	domain.EventOfferAccepted: {
		{queue.QueueEmail, queue.TypeOfferAcceptedEmail, 0, notifyPolicy},
		{queue.QueuePush, queue.TypeOfferAcceptedPush, 0, notifyPolicy},
		{queue.QueueAnalytics, queue.TypeRecordEvent, 0, notifyPolicy},
	},
	domain.EventPaymentWebhook: {
		{queue.QueuePayment, queue.TypeReconcilePayment, queue.PriorityHigh, statePolicy},
	},
	domain.EventShippingWebhook: {
		{queue.QueueShipping, queue.TypeTrackUpdate, 0, statePolicy},
	},
	domain.EventImageUploaded: {
		{queue.QueueImage, queue.TypeProcessImage, 0, notifyPolicy},
	},
}

// Emitter translates a committed domain event into its fan-out of queue
// jobs. It is called synchronously after the business transaction commits.
type Emitter struct {
	store  queue.Queue
	logger *zap.Logger
}

func New(store queue.Queue, l *zap.Logger) *Emitter {
	return &Emitter{store: store, logger: l}
}

// Emit enqueues every configured job for the event and returns the number
// successfully enqueued. A failed enqueue is logged and skipped; the caller
// already committed the domain change, so the caller is never failed for a
// delayed side effect. Duplicate emission is safe because handlers are
// idempotent, not because emission de-duplicates.
func (e *Emitter) Emit(ctx context.Context, event *domain.DomainEvent) int {
	targets, ok := fanOut[event.Name]
	if !ok {
		e.logger.Warn("No fan-out configured for event, nothing enqueued",
			zap.String("event", event.Name),
			zap.String("entity_id", event.EntityID))
		return 0
	}

	enqueued := 0
	for _, t := range targets {
		job, err := queue.NewJob(t.queueName, t.jobType, event, t.policy.maxAttempts, t.policy.backoff)
		if err != nil {
			e.logger.Error("Failed to build job for event",
				zap.String("event", event.Name),
				zap.String("queue", t.queueName),
				zap.String("type", t.jobType),
				zap.Error(err))
			continue
		}
		job.Priority = t.priority

		if err := e.store.Enqueue(ctx, job); err != nil {
			// Independent enqueues: one unavailable queue must not starve
			// the others of their job.
			e.logger.Error("Failed to enqueue job for event",
				zap.String("event", event.Name),
				zap.String("queue", t.queueName),
				zap.String("type", t.jobType),
				zap.Error(err))
			continue
		}
		enqueued++
	}

	e.logger.Info("Event emitted",
		zap.String("event", event.Name),
		zap.String("entity_id", event.EntityID),
		zap.Int("jobs_enqueued", enqueued),
		zap.Int("jobs_configured", len(targets)))
	return enqueued
}

// FanOutSize reports how many jobs an event name is configured to produce.
func FanOutSize(eventName string) int {
	return len(fanOut[eventName])
}
