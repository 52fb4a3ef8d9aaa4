package webhooks_http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"marketplace/internal/domain"
)

// Webhook bodies are capped; a gateway callback is a small JSON document.
const maxWebhookBody = 64 << 10

// Emitter is the fan-out entry point the webhook endpoints hand accepted
// callbacks to.
type Emitter interface {
	Emit(ctx context.Context, event *domain.DomainEvent) int
}

type WebhookHandler struct {
	emitter Emitter
	logger  *zap.Logger
}

func NewWebhookHandler(e Emitter, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{emitter: e, logger: l}
}

type webhookAcceptedResponse struct {
	Status      string `json:"status"`
	JobsCreated int    `json:"jobs_created"`
}

// PaymentWebhookHandler accepts a gateway callback, records it as a
// payment.webhook event and returns 202. Verification against the stored
// payment happens in the queue handler, not here.
func (h *WebhookHandler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read payment webhook body", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var payload domain.PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Malformed payment webhook body", zap.Error(err))
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if payload.ProviderPaymentID == "" && payload.ConversationID == "" {
		http.Error(w, "provider_payment_id or conversation_id is required", http.StatusBadRequest)
		return
	}
	if payload.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	payload.Raw = json.RawMessage(body)

	entityID := payload.ProviderPaymentID
	if entityID == "" {
		entityID = payload.ConversationID
	}

	event, err := domain.NewEvent(domain.EventPaymentWebhook, entityID, payload)
	if err != nil {
		h.logger.Error("Failed to build payment webhook event", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	enqueued := h.emitter.Emit(r.Context(), event)
	h.logger.Info("Payment webhook accepted",
		zap.String("provider_payment_id", payload.ProviderPaymentID),
		zap.String("conversation_id", payload.ConversationID),
		zap.Int("jobs_enqueued", enqueued))

	writeAccepted(w, h.logger, enqueued)
}

// ShippingWebhookHandler accepts a carrier tracking callback and records it
// as a shipping.webhook event.
func (h *WebhookHandler) ShippingWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read shipping webhook body", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var payload domain.ShippingWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Malformed shipping webhook body", zap.Error(err))
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if payload.TrackingNumber == "" {
		http.Error(w, "tracking_number is required", http.StatusBadRequest)
		return
	}
	if payload.CarrierStatus == "" {
		http.Error(w, "carrier_status is required", http.StatusBadRequest)
		return
	}
	payload.Raw = json.RawMessage(body)

	event, err := domain.NewEvent(domain.EventShippingWebhook, payload.TrackingNumber, payload)
	if err != nil {
		h.logger.Error("Failed to build shipping webhook event", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	enqueued := h.emitter.Emit(r.Context(), event)
	h.logger.Info("Shipping webhook accepted",
		zap.String("tracking_number", payload.TrackingNumber),
		zap.String("carrier_status", payload.CarrierStatus),
		zap.Int("jobs_enqueued", enqueued))

	writeAccepted(w, h.logger, enqueued)
}

func writeAccepted(w http.ResponseWriter, l *zap.Logger, enqueued int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := webhookAcceptedResponse{Status: "accepted", JobsCreated: enqueued}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		l.Error("Failed to write JSON response", zap.Error(err))
	}
}
