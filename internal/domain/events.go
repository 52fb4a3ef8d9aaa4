package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event name constants for marketplace domain events.
const (
	EventOrderCreated    = "order.created"
	EventOrderPaid       = "order.paid"
	EventOrderShipped    = "order.shipped"
	EventOrderDelivered  = "order.delivered"
	EventOfferCreated    = "offer.created"
	EventOfferAccepted   = "offer.accepted"
	EventPaymentWebhook  = "payment.webhook"
	EventShippingWebhook = "shipping.webhook"
	EventImageUploaded   = "image.uploaded"
)

// DomainEvent is an immutable, named fact produced once per business
// transition. EntityID plus Name identify the event for de-duplication;
// duplicates are tolerated by handler-level idempotency downstream.
type DomainEvent struct {
	Name       string          `json:"name"`
	EntityID   string          `json:"entity_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(name, entityID string, payload interface{}) (*DomainEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload for %s: %w", name, err)
	}
	return &DomainEvent{
		Name:       name,
		EntityID:   entityID,
		OccurredAt: time.Now(),
		Payload:    raw,
	}, nil
}
