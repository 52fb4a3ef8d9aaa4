package shipment_repo

import (
	"context"

	"marketplace/internal/domain"
)

type ShipmentRepository interface {
	// Create inserts the shipment, treating a duplicate order_id as a no-op
	// (false, nil): a re-delivered create-shipment job must not produce a
	// second shipment.
	Create(ctx context.Context, shipment *domain.Shipment) (bool, error)

	GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error)
	SetLabelURL(ctx context.Context, id, labelURL string) error

	// RecordTrackingEvent appends one row to the append-only tracking
	// history and moves the shipment status in the same transaction, so
	// the shipment status always equals its most recent event.
	RecordTrackingEvent(ctx context.Context, shipmentID string, event *domain.ShipmentEvent) error

	History(ctx context.Context, shipmentID string) ([]*domain.ShipmentEvent, error)
}
