package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/queue"
	"marketplace/internal/repository/order_repo"
	"marketplace/internal/worker"
)

const docKeyPrefix = "search:orders:"

// Handler maintains the denormalized per-order search document. It is
// best-effort enrichment: a failed job means stale search results, never a
// blocked order.
type Handler struct {
	orders order_repo.OrderRepository
	client *redis.Client
	logger *zap.Logger
}

func NewHandler(orders order_repo.OrderRepository, client *redis.Client, l *zap.Logger) *Handler {
	return &Handler{orders: orders, client: client, logger: l}
}

func (h *Handler) Register(r *worker.Registry) error {
	if err := r.Register(queue.QueueSearch, queue.TypeIndexOrder, h.Upsert); err != nil {
		return err
	}
	if err := r.Register(queue.QueueSearch, queue.TypeUpdateOrder, h.Upsert); err != nil {
		return err
	}
	return r.Register(queue.QueueSearch, queue.TypeDeleteOrder, h.Delete)
}

// Upsert rebuilds the order's search document from the source of truth.
// Index and update are the same write; the document converges regardless
// of how stale the triggering event was.
func (h *Handler) Upsert(ctx context.Context, job *queue.Job) error {
	orderID, err := entityID(job)
	if err != nil {
		return worker.Malformed(err)
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// Deleted before the index job ran; drop the document instead.
			if delErr := h.client.Del(ctx, docKeyPrefix+orderID).Err(); delErr != nil {
				return fmt.Errorf("delete document for vanished order %s: %w", orderID, delErr)
			}
			return nil
		}
		return fmt.Errorf("load order %s for indexing: %w", orderID, err)
	}

	doc := map[string]interface{}{
		"order_id":  order.ID,
		"buyer_id":  order.BuyerID,
		"seller_id": order.SellerID,
		"title":     order.Title,
		"amount":    order.Amount,
		"status":    string(order.Status),
	}
	if err := h.client.HSet(ctx, docKeyPrefix+order.ID, doc).Err(); err != nil {
		return fmt.Errorf("write search document for order %s: %w", order.ID, err)
	}

	h.logger.Debug("Search document updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)))
	return nil
}

func (h *Handler) Delete(ctx context.Context, job *queue.Job) error {
	orderID, err := entityID(job)
	if err != nil {
		return worker.Malformed(err)
	}
	if err := h.client.Del(ctx, docKeyPrefix+orderID).Err(); err != nil {
		return fmt.Errorf("delete search document for order %s: %w", orderID, err)
	}
	h.logger.Debug("Search document deleted", zap.String("order_id", orderID))
	return nil
}

func entityID(job *queue.Job) (string, error) {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return "", fmt.Errorf("decode event envelope: %w", err)
	}
	if event.EntityID == "" {
		return "", errors.New("event missing entity id")
	}
	return event.EntityID, nil
}
