package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/gateway"
	"marketplace/internal/queue"
	"marketplace/internal/repository/order_repo"
	"marketplace/internal/repository/payment_repo"
	"marketplace/internal/worker"
)

// DefaultCommissionRate is the platform's cut applied at escrow release.
const DefaultCommissionRate = 0.10

// Emitter is the slice of the event emitter the payment handlers need.
type Emitter interface {
	Emit(ctx context.Context, event *domain.DomainEvent) int
}

// Handler owns the payment-queue job types: webhook reconciliation, escrow
// release and refunds.
type Handler struct {
	orders         order_repo.OrderRepository
	payments       payment_repo.PaymentRepository
	gateway        gateway.PaymentGateway
	emitter        Emitter
	commissionRate float64
	logger         *zap.Logger
}

func NewHandler(
	orders order_repo.OrderRepository,
	payments payment_repo.PaymentRepository,
	gw gateway.PaymentGateway,
	emitter Emitter,
	commissionRate float64,
	l *zap.Logger,
) *Handler {
	if commissionRate <= 0 {
		commissionRate = DefaultCommissionRate
	}
	return &Handler{
		orders:         orders,
		payments:       payments,
		gateway:        gw,
		emitter:        emitter,
		commissionRate: commissionRate,
		logger:         l,
	}
}

// Register binds the handler's job types into the payment queue.
func (h *Handler) Register(r *worker.Registry) error {
	if err := r.Register(queue.QueuePayment, queue.TypeReconcilePayment, h.Reconcile); err != nil {
		return err
	}
	if err := r.Register(queue.QueuePayment, queue.TypeReleaseEscrow, h.ReleaseEscrow); err != nil {
		return err
	}
	return r.Register(queue.QueuePayment, queue.TypeRefundPayment, h.Refund)
}

// Reconcile applies an inbound gateway webhook to the local Payment and
// Order. Duplicate deliveries and out-of-order arrival are no-ops thanks to
// the conditional updates underneath.
func (h *Handler) Reconcile(ctx context.Context, job *queue.Job) error {
	event, payload, err := decodeWebhook(job)
	if err != nil {
		return worker.Malformed(err)
	}

	payment, err := h.payments.GetByProviderRef(ctx, payload.ProviderPaymentID, payload.ConversationID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			// Retrying cannot conjure the payment; park it where an
			// operator will see a possibly lost payment.
			h.logger.Warn("Webhook references unknown payment",
				zap.String("provider_payment_id", payload.ProviderPaymentID),
				zap.String("conversation_id", payload.ConversationID))
			return worker.TerminalBury(err)
		}
		return fmt.Errorf("look up payment for webhook: %w", err)
	}

	switch normalizeGatewayStatus(payload.Status) {
	case gatewayStatusSuccess:
		return h.reconcileSuccess(ctx, payment, event)
	case gatewayStatusFailure:
		return h.reconcileFailure(ctx, payment)
	default:
		return worker.Malformed(fmt.Errorf("unknown gateway status %q", payload.Status))
	}
}

func (h *Handler) reconcileSuccess(ctx context.Context, payment *domain.Payment, event *domain.DomainEvent) error {
	if payment.Status == domain.PaymentStatusCompleted {
		// Duplicate delivery of a success webhook is an expected no-op.
		h.logger.Info("Payment already completed, webhook is a no-op",
			zap.String("payment_id", payment.ID),
			zap.String("order_id", payment.OrderID))
		return nil
	}

	completed, err := h.payments.CompleteAndMarkOrderPaid(ctx, payment.ID, payment.OrderID)
	if err != nil {
		return fmt.Errorf("complete payment %s: %w", payment.ID, err)
	}
	if !completed {
		// Lost the race against a concurrent delivery; the winner emitted.
		h.logger.Info("Payment completion guard did not match, no-op",
			zap.String("payment_id", payment.ID))
		return nil
	}

	order, err := h.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s after payment: %w", payment.OrderID, err)
	}

	paidEvent, err := domain.NewEvent(domain.EventOrderPaid, order.ID, &domain.OrderEventPayload{
		OrderID:  order.ID,
		BuyerID:  order.BuyerID,
		SellerID: order.SellerID,
		Title:    order.Title,
		Amount:   order.Amount,
	})
	if err != nil {
		return fmt.Errorf("build order.paid event: %w", err)
	}
	h.emitter.Emit(ctx, paidEvent)

	h.logger.Info("Payment reconciled",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", order.ID),
		zap.String("source_event", event.Name))
	return nil
}

func (h *Handler) reconcileFailure(ctx context.Context, payment *domain.Payment) error {
	updated, err := h.payments.UpdateStatus(ctx, payment.ID,
		domain.PaymentStatusPending, domain.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("mark payment %s failed: %w", payment.ID, err)
	}
	if !updated {
		h.logger.Info("Payment no longer pending, failure webhook is a no-op",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(payment.Status)))
		return nil
	}
	h.logger.Warn("Payment marked failed from gateway webhook",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))
	return nil
}

// ReleaseEscrow finalizes the platform commission on a delivered order.
// The commission field is write-once; re-delivery of the job is a no-op.
func (h *Handler) ReleaseEscrow(ctx context.Context, job *queue.Job) error {
	event, payload, err := decodeOrderEvent(job)
	if err != nil {
		return worker.Malformed(err)
	}

	order, err := h.orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return worker.TerminalBury(fmt.Errorf("escrow release for unknown order %s: %w", payload.OrderID, err))
		}
		return fmt.Errorf("load order %s for escrow release: %w", payload.OrderID, err)
	}

	if order.HasCommission() {
		h.logger.Info("Order already carries a commission, escrow release is a no-op",
			zap.String("order_id", order.ID))
		return nil
	}
	if order.Status != domain.OrderStatusDelivered {
		if order.Status == domain.OrderStatusCompleted {
			return nil
		}
		// The delivering transition may still be in flight.
		return fmt.Errorf("order %s not delivered yet (status %s)", order.ID, order.Status)
	}

	commission := order.Amount * h.commissionRate
	persisted, err := h.orders.SetCommission(ctx, order.ID, commission)
	if err != nil {
		return fmt.Errorf("persist commission for order %s: %w", order.ID, err)
	}
	if !persisted {
		h.logger.Info("Commission already persisted by a concurrent release, no-op",
			zap.String("order_id", order.ID))
		return nil
	}

	h.logger.Info("Escrow released",
		zap.String("order_id", order.ID),
		zap.Float64("amount", order.Amount),
		zap.Float64("commission", commission),
		zap.String("source_event", event.Name))
	return nil
}

// Refund issues a gateway refund (external call first) and then records the
// state transition in a short transaction-equivalent of conditional writes.
func (h *Handler) Refund(ctx context.Context, job *queue.Job) error {
	_, payload, err := decodeOrderEvent(job)
	if err != nil {
		return worker.Malformed(err)
	}

	payment, err := h.payments.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return worker.TerminalBury(fmt.Errorf("refund for order %s without payment: %w", payload.OrderID, err))
		}
		return fmt.Errorf("load payment for refund of order %s: %w", payload.OrderID, err)
	}

	if payment.Status == domain.PaymentStatusRefunded {
		h.logger.Info("Payment already refunded, no-op", zap.String("payment_id", payment.ID))
		return nil
	}
	if payment.Status != domain.PaymentStatusCompleted {
		return worker.Terminal(fmt.Errorf("payment %s not refundable in status %s", payment.ID, payment.Status))
	}

	if err := h.gateway.Refund(ctx, payment.ProviderPaymentID, payment.Amount); err != nil {
		return fmt.Errorf("gateway refund for payment %s: %w", payment.ID, err)
	}

	if _, err := h.payments.UpdateStatus(ctx, payment.ID,
		domain.PaymentStatusCompleted, domain.PaymentStatusRefunded); err != nil {
		return fmt.Errorf("mark payment %s refunded: %w", payment.ID, err)
	}

	// The order may be paid or delivered when the refund lands; either
	// transition is legal, whichever guard matches wins.
	if moved, err := h.orders.UpdateStatus(ctx, payment.OrderID,
		domain.OrderStatusDelivered, domain.OrderStatusRefunded); err != nil {
		return fmt.Errorf("mark order %s refunded: %w", payment.OrderID, err)
	} else if !moved {
		if _, err := h.orders.UpdateStatus(ctx, payment.OrderID,
			domain.OrderStatusPaid, domain.OrderStatusRefunded); err != nil {
			return fmt.Errorf("mark order %s refunded: %w", payment.OrderID, err)
		}
	}

	h.logger.Info("Refund completed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))
	return nil
}

const (
	gatewayStatusSuccess = "success"
	gatewayStatusFailure = "failure"
	gatewayStatusUnknown = "unknown"
)

func normalizeGatewayStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "COMPLETED", "PAID", "AUTH_SUCCESS":
		return gatewayStatusSuccess
	case "FAILURE", "FAILED", "DECLINED", "AUTH_FAILED":
		return gatewayStatusFailure
	default:
		return gatewayStatusUnknown
	}
}

func decodeWebhook(job *queue.Job) (*domain.DomainEvent, *domain.PaymentWebhookPayload, error) {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return nil, nil, fmt.Errorf("decode event envelope: %w", err)
	}
	payload := &domain.PaymentWebhookPayload{}
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		return nil, nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if payload.ProviderPaymentID == "" && payload.ConversationID == "" {
		return nil, nil, errors.New("webhook carries neither provider payment id nor conversation id")
	}
	return event, payload, nil
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
