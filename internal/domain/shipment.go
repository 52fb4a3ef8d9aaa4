package domain

import "time"

type ShipmentStatus string

const (
	ShipmentStatusLabelCreated   ShipmentStatus = "label_created"
	ShipmentStatusPickedUp       ShipmentStatus = "picked_up"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusReturned       ShipmentStatus = "returned"
	ShipmentStatusFailed         ShipmentStatus = "failed"
)

type Shipment struct {
	ID             string
	OrderID        string
	Carrier        string
	TrackingNumber string
	LabelURL       string
	Status         ShipmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ShipmentEvent is one row of the append-only tracking history. Rows are
// never overwritten; the Shipment status always equals the status of the
// most recent event.
type ShipmentEvent struct {
	ID            int64
	ShipmentID    string
	Status        ShipmentStatus
	CarrierStatus string
	Location      string
	CreatedAt     time.Time
}
