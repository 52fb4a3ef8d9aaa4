package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/queue"
	"marketplace/internal/worker"
)

const variantKeyPrefix = "images:listings:"

// variants are derived from the original upload key. The storage service
// materializes them lazily; this handler only records the expected keys so
// listing pages can reference them immediately.
var variants = []struct {
	name   string
	suffix string
}{
	{name: "thumbnail", suffix: "_thumb"},
	{name: "display", suffix: "_display"},
}

// Handler records the image variant keys for a listing after an upload.
type Handler struct {
	client *redis.Client
	logger *zap.Logger
}

func NewHandler(client *redis.Client, l *zap.Logger) *Handler {
	return &Handler{client: client, logger: l}
}

func (h *Handler) Register(r *worker.Registry) error {
	return r.Register(queue.QueueImage, queue.TypeProcessImage, h.Process)
}

func (h *Handler) Process(ctx context.Context, job *queue.Job) error {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return worker.Malformed(fmt.Errorf("decode event envelope: %w", err))
	}
	payload := &domain.ImageUploadedPayload{}
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		return worker.Malformed(fmt.Errorf("decode image payload: %w", err))
	}
	if payload.ListingID == "" || payload.ImageKey == "" {
		return worker.Malformed(errors.New("image event missing listing id or image key"))
	}

	fields := map[string]interface{}{"original": payload.ImageKey}
	for _, v := range variants {
		fields[v.name] = variantKey(payload.ImageKey, v.suffix)
	}
	if err := h.client.HSet(ctx, variantKeyPrefix+payload.ListingID, fields).Err(); err != nil {
		return fmt.Errorf("record image variants for listing %s: %w", payload.ListingID, err)
	}

	h.logger.Info("Image variants recorded",
		zap.String("job_id", job.ID),
		zap.String("listing_id", payload.ListingID),
		zap.String("image_key", payload.ImageKey))
	return nil
}

// variantKey inserts the variant suffix before the file extension:
// listings/ab12/photo.jpg with _thumb becomes listings/ab12/photo_thumb.jpg.
func variantKey(imageKey, suffix string) string {
	ext := path.Ext(imageKey)
	return strings.TrimSuffix(imageKey, ext) + suffix + ext
}
