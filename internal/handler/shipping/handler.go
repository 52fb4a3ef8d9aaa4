package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace/internal/carrier"
	"marketplace/internal/domain"
	"marketplace/internal/queue"
	"marketplace/internal/repository/order_repo"
	"marketplace/internal/repository/shipment_repo"
	"marketplace/internal/worker"
)

// Emitter is the slice of the event emitter the shipping handlers need.
type Emitter interface {
	Emit(ctx context.Context, event *domain.DomainEvent) int
}

// Handler owns the shipping-queue job types: shipment creation, tracking
// updates from carrier webhooks, and label generation.
type Handler struct {
	orders      order_repo.OrderRepository
	shipments   shipment_repo.ShipmentRepository
	carrier     carrier.Client
	carrierName string
	emitter     Emitter
	logger      *zap.Logger
}

func NewHandler(
	orders order_repo.OrderRepository,
	shipments shipment_repo.ShipmentRepository,
	client carrier.Client,
	carrierName string,
	emitter Emitter,
	l *zap.Logger,
) *Handler {
	return &Handler{
		orders:      orders,
		shipments:   shipments,
		carrier:     client,
		carrierName: carrierName,
		emitter:     emitter,
		logger:      l,
	}
}

func (h *Handler) Register(r *worker.Registry) error {
	if err := r.Register(queue.QueueShipping, queue.TypeCreateShipment, h.CreateShipment); err != nil {
		return err
	}
	if err := r.Register(queue.QueueShipping, queue.TypeTrackUpdate, h.TrackUpdate); err != nil {
		return err
	}
	return r.Register(queue.QueueShipping, queue.TypeGenerateLabel, h.GenerateLabel)
}

// carrierStatusMap translates the carrier's vocabulary onto the closed
// ShipmentStatus set. Unrecognized strings default to in_transit: carriers
// add status words over time and an unknown word must not fail the job.
var carrierStatusMap = map[string]domain.ShipmentStatus{
	"LABEL_CREATED":    domain.ShipmentStatusLabelCreated,
	"PICKED_UP":        domain.ShipmentStatusPickedUp,
	"ACCEPTED":         domain.ShipmentStatusPickedUp,
	"IN_TRANSIT":       domain.ShipmentStatusInTransit,
	"LINEHAUL":         domain.ShipmentStatusInTransit,
	"ARRIVED_HUB":      domain.ShipmentStatusInTransit,
	"CUSTOMS":          domain.ShipmentStatusInTransit,
	"OUT_FOR_DELIVERY": domain.ShipmentStatusOutForDelivery,
	"DELIVERED":        domain.ShipmentStatusDelivered,
	"RETURNED":         domain.ShipmentStatusReturned,
	"RETURN_TO_SENDER": domain.ShipmentStatusReturned,
	"EXCEPTION":        domain.ShipmentStatusFailed,
	"FAILED":           domain.ShipmentStatusFailed,
	"LOST":             domain.ShipmentStatusFailed,
}

// MapCarrierStatus resolves a carrier-reported status string.
func MapCarrierStatus(carrierStatus string) domain.ShipmentStatus {
	if status, ok := carrierStatusMap[strings.ToUpper(strings.TrimSpace(carrierStatus))]; ok {
		return status
	}
	return domain.ShipmentStatusInTransit
}

// CreateShipment turns a paid order into a shipment with a tracking number
// and advances the order to shipped. Re-delivery is a no-op: the shipment
// insert is guarded on order_id and the order transition is conditional.
func (h *Handler) CreateShipment(ctx context.Context, job *queue.Job) error {
	_, payload, err := decodeOrderEvent(job)
	if err != nil {
		return worker.Malformed(err)
	}

	order, err := h.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return worker.TerminalBury(fmt.Errorf("create-shipment for unknown order %s: %w", payload.OrderID, err))
		}
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}

	switch order.Status {
	case domain.OrderStatusPaid:
		// Proceed.
	case domain.OrderStatusCreated:
		// The paying transaction may still be settling; try again later.
		return fmt.Errorf("order %s not paid yet", order.ID)
	default:
		// Shipped or later: an earlier delivery of this job already won.
		h.logger.Info("Order already at or past shipped, create-shipment is a no-op",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return nil
	}

	trackingNumber, err := h.carrier.CreateShipment(ctx, order)
	if err != nil {
		return fmt.Errorf("carrier shipment for order %s: %w", order.ID, err)
	}

	now := time.Now()
	shipment := &domain.Shipment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		Carrier:        h.carrierName,
		TrackingNumber: trackingNumber,
		Status:         domain.ShipmentStatusLabelCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := h.shipments.Create(ctx, shipment)
	if err != nil {
		return fmt.Errorf("persist shipment for order %s: %w", order.ID, err)
	}
	if !created {
		// A concurrent or earlier delivery already created it; reuse that
		// shipment's tracking number for the event below.
		existing, err := h.shipments.GetByOrderID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load existing shipment for order %s: %w", order.ID, err)
		}
		shipment = existing
	}

	moved, err := h.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusShipped)
	if err != nil {
		return fmt.Errorf("mark order %s shipped: %w", order.ID, err)
	}
	if !moved {
		h.logger.Info("Order ship transition guard did not match, no-op",
			zap.String("order_id", order.ID))
		return nil
	}

	shippedEvent, err := domain.NewEvent(domain.EventOrderShipped, order.ID, &domain.OrderEventPayload{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		Title:          order.Title,
		Amount:         order.Amount,
		TrackingNumber: shipment.TrackingNumber,
	})
	if err != nil {
		return fmt.Errorf("build order.shipped event: %w", err)
	}
	h.emitter.Emit(ctx, shippedEvent)

	h.logger.Info("Shipment created",
		zap.String("order_id", order.ID),
		zap.String("shipment_id", shipment.ID),
		zap.String("tracking_number", shipment.TrackingNumber))
	return nil
}

// TrackUpdate applies one carrier-reported status to the shipment's
// append-only history, advancing the order to delivered when the mapped
// status says so.
func (h *Handler) TrackUpdate(ctx context.Context, job *queue.Job) error {
	_, payload, err := decodeShippingWebhook(job)
	if err != nil {
		return worker.Malformed(err)
	}

	shipment, err := h.shipments.GetByTrackingNumber(ctx, payload.TrackingNumber)
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			// The carrier may report before create-shipment commits.
			return fmt.Errorf("no shipment for tracking number %s yet", payload.TrackingNumber)
		}
		return fmt.Errorf("load shipment %s: %w", payload.TrackingNumber, err)
	}

	status := MapCarrierStatus(payload.CarrierStatus)
	event := &domain.ShipmentEvent{
		ShipmentID:    shipment.ID,
		Status:        status,
		CarrierStatus: payload.CarrierStatus,
		Location:      payload.Location,
		CreatedAt:     time.Now(),
	}
	if err := h.shipments.RecordTrackingEvent(ctx, shipment.ID, event); err != nil {
		return fmt.Errorf("record tracking event for shipment %s: %w", shipment.ID, err)
	}

	h.logger.Info("Tracking update recorded",
		zap.String("shipment_id", shipment.ID),
		zap.String("tracking_number", shipment.TrackingNumber),
		zap.String("carrier_status", payload.CarrierStatus),
		zap.String("status", string(status)))

	if status != domain.ShipmentStatusDelivered {
		return nil
	}

	moved, err := h.orders.UpdateStatus(ctx, shipment.OrderID,
		domain.OrderStatusShipped, domain.OrderStatusDelivered)
	if err != nil {
		return fmt.Errorf("mark order %s delivered: %w", shipment.OrderID, err)
	}
	if !moved {
		// Duplicate delivered report; the first one emitted.
		return nil
	}

	order, err := h.orders.GetByID(ctx, shipment.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s after delivery: %w", shipment.OrderID, err)
	}
	deliveredEvent, err := domain.NewEvent(domain.EventOrderDelivered, order.ID, &domain.OrderEventPayload{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		Title:          order.Title,
		Amount:         order.Amount,
		TrackingNumber: shipment.TrackingNumber,
	})
	if err != nil {
		return fmt.Errorf("build order.delivered event: %w", err)
	}
	h.emitter.Emit(ctx, deliveredEvent)
	return nil
}

// GenerateLabel asks the carrier for a label document. Label generation
// cannot precede shipment creation, so a missing shipment is retried.
func (h *Handler) GenerateLabel(ctx context.Context, job *queue.Job) error {
	_, payload, err := decodeOrderEvent(job)
	if err != nil {
		return worker.Malformed(err)
	}

	if _, err := h.orders.GetByID(ctx, payload.OrderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return worker.TerminalBury(fmt.Errorf("generate-label for unknown order %s: %w", payload.OrderID, err))
		}
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}

	shipment, err := h.shipments.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			return fmt.Errorf("shipment for order %s does not exist yet", payload.OrderID)
		}
		return fmt.Errorf("load shipment for order %s: %w", payload.OrderID, err)
	}

	if shipment.LabelURL != "" {
		h.logger.Info("Label already generated, no-op", zap.String("shipment_id", shipment.ID))
		return nil
	}

	labelURL, err := h.carrier.CreateLabel(ctx, shipment)
	if err != nil {
		return fmt.Errorf("carrier label for shipment %s: %w", shipment.ID, err)
	}
	if err := h.shipments.SetLabelURL(ctx, shipment.ID, labelURL); err != nil {
		return fmt.Errorf("persist label URL for shipment %s: %w", shipment.ID, err)
	}

	h.logger.Info("Label generated",
		zap.String("shipment_id", shipment.ID),
		zap.String("label_url", labelURL))
	return nil
}

func decodeOrderEvent(job *queue.Job) (*domain.DomainEvent, *domain.OrderEventPayload, error) {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return nil, nil, fmt.Errorf("decode event envelope: %w", err)
	}
	payload := &domain.OrderEventPayload{}
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		return nil, nil, fmt.Errorf("decode order payload: %w", err)
	}
	if payload.OrderID == "" {
		return nil, nil, errors.New("order event payload missing order_id")
	}
	return event, payload, nil
}

func decodeShippingWebhook(job *queue.Job) (*domain.DomainEvent, *domain.ShippingWebhookPayload, error) {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return nil, nil, fmt.Errorf("decode event envelope: %w", err)
	}
	payload := &domain.ShippingWebhookPayload{}
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		return nil, nil, fmt.Errorf("decode shipping webhook payload: %w", err)
	}
	if payload.TrackingNumber == "" {
		return nil, nil, errors.New("shipping webhook missing tracking_number")
	}
	return event, payload, nil
}
