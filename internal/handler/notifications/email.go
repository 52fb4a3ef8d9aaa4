package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/queue"
	"marketplace/internal/transport/email"
	"marketplace/internal/worker"
)

// recipient field per email job type: who the message is for decides which
// address from the event payload is used.
var emailRecipientField = map[string]string{
	queue.TypeOrderConfirmationEmail: "buyer_email",
	queue.TypePaymentReceivedEmail:   "buyer_email",
	queue.TypeOrderShippedEmail:      "buyer_email",
	queue.TypeOrderDeliveredEmail:    "buyer_email",
	queue.TypeOfferReceivedEmail:     "seller_email",
	queue.TypeOfferAcceptedEmail:     "buyer_email",
}

// EmailHandler is a stateless render-and-send step: template lookup by the
// job type, generic fallback, one transport call.
type EmailHandler struct {
	sender email.Sender
	logger *zap.Logger
}

func NewEmailHandler(sender email.Sender, l *zap.Logger) *EmailHandler {
	return &EmailHandler{sender: sender, logger: l}
}

func (h *EmailHandler) Register(r *worker.Registry) error {
	for jobType := range emailRecipientField {
		if err := r.Register(queue.QueueEmail, jobType, h.Send); err != nil {
			return err
		}
	}
	return nil
}

func (h *EmailHandler) Send(ctx context.Context, job *queue.Job) error {
	event := &domain.DomainEvent{}
	if err := json.Unmarshal(job.Payload, event); err != nil {
		return worker.Malformed(fmt.Errorf("decode event envelope: %w", err))
	}

	data := map[string]interface{}{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &data); err != nil {
			return worker.Malformed(fmt.Errorf("decode event data: %w", err))
		}
	}

	to := h.recipient(job.Type, data)
	if to == "" {
		// No address on file is a business outcome, not a failure.
		h.logger.Info("No recipient address for email job, nothing to send",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type))
		return worker.Terminal(fmt.Errorf("no recipient address for %s", job.Type))
	}

	subject, text, html := renderEmail(job.Type, data)

	messageID, err := h.sender.Send(ctx, to, subject, html, text)
	if err != nil {
		return fmt.Errorf("send %s email to %s: %w", job.Type, to, err)
	}

	h.logger.Info("Notification email sent",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("to", to),
		zap.String("message_id", messageID))
	return nil
}

func (h *EmailHandler) recipient(jobType string, data map[string]interface{}) string {
	field, ok := emailRecipientField[jobType]
	if !ok {
		field = "buyer_email"
	}
	if value, ok := data[field].(string); ok {
		return value
	}
	return ""
}
