package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/infrastructure/kafka"
	"marketplace/internal/queue"
	"marketplace/internal/worker"
)

// Handler appends event envelopes to the analytics stream. Downstream
// aggregation owns interpretation; the pipeline only guarantees the record
// eventually lands.
type Handler struct {
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewHandler(producer kafka.Producer, topic string, l *zap.Logger) *Handler {
	return &Handler{producer: producer, topic: topic, logger: l}
}

func (h *Handler) Register(r *worker.Registry) error {
	return r.Register(queue.QueueAnalytics, queue.TypeRecordEvent, h.Record)
}

func (h *Handler) Record(ctx context.Context, job *queue.Job) error {
	// The job payload is already the serialized event envelope; it goes to
	// the stream as-is, keyed by job id for downstream de-duplication.
	if err := h.producer.Produce(ctx, h.topic, []byte(job.ID), job.Payload); err != nil {
		return fmt.Errorf("append analytics record: %w", err)
	}
	h.logger.Debug("Analytics record appended",
		zap.String("job_id", job.ID),
		zap.String("topic", h.topic))
	return nil
}
