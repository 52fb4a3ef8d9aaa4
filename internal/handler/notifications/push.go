package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"marketplace/internal/domain"
	"marketplace/internal/queue"
	"marketplace/internal/repository/token_repo"
	"marketplace/internal/transport/push"
	"marketplace/internal/worker"
)

// pushContent is the title/body pair plus the payload field naming the
// recipient user for each push job type.
type pushContent struct {
	userField string
	title     string
	body      string
}

var pushContents = map[string]pushContent{
	queue.TypeOrderPaidPush: {
		userField: "seller_id",
		title:     "Order paid",
		body:      "A buyer paid for your listing. Time to ship!",
	},
	queue.TypeOrderShippedPush: {
		userField: "buyer_id",
		title:     "Order shipped",
		body:      "Your order is on its way.",
	},
	queue.TypeOrderDeliveredPush: {
		userField: "buyer_id",
		title:     "Order delivered",
		body:      "Your order arrived. Enjoy!",
	},
	queue.TypeOfferReceivedPush: {
		userField: "seller_id",
		title:     "New offer",
		body:      "You received an offer on your listing.",
	},
	queue.TypeOfferAcceptedPush: {
		userField: "buyer_id",
		title:     "Offer accepted",
		body:      "Your offer was accepted. Complete checkout to secure it.",
	},
}

// PushHandler resolves the recipient's device tokens and sends through the
// batched push transport. A user without tokens is a terminal "nothing to
// send", never a retry.
type PushHandler struct {
	tokens token_repo.DeviceTokenRepository
	sender push.Sender
	logger *zap.Logger
}

func NewPushHandler(tokens token_repo.DeviceTokenRepository, sender push.Sender, l *zap.Logger) *PushHandler {
	return &PushHandler{tokens: tokens, sender: sender, logger: l}
}

func (h *PushHandler) Register(r *worker.Registry) error {
	for jobType := range pushContents {
		if err := r.Register(queue.QueuePush, jobType, h.Send); err != nil {
			return err
		}
	}
	return nil
}

func (h *PushHandler) Send(ctx context.Context, job *queue.Job) error {
	content, ok := pushContents[job.Type]
	if !ok {
		return worker.Malformed(fmt.Errorf("no push content for job type %s", job.Type))
	}

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

	userID, _ := data[content.userField].(string)
	if userID == "" {
		return worker.Malformed(fmt.Errorf("event payload missing %s", content.userField))
	}

	tokens, err := h.tokens.TokensForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load device tokens for user %s: %w", userID, err)
	}
	if len(tokens) == 0 {
		h.logger.Info("User has no device token, nothing to send",
			zap.String("job_id", job.ID),
			zap.String("user_id", userID))
		return worker.Terminal(domain.ErrNoDeviceToken)
	}

	messages := make([]push.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, push.Message{
			Token: token.Token,
			Title: content.title,
			Body:  content.body,
			Data: map[string]string{
				"event":     event.Name,
				"entity_id": event.EntityID,
			},
		})
	}

	if err := h.sendChunked(ctx, messages); err != nil {
		return fmt.Errorf("push %s to user %s: %w", job.Type, userID, err)
	}

	h.logger.Info("Push notification sent",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("user_id", userID),
		zap.Int("devices", len(messages)))
	return nil
}

// sendChunked splits a send across transport calls of at most MaxBatchSize
// messages. Per-message error tickets are logged; only a transport-level
// failure fails the job.
func (h *PushHandler) sendChunked(ctx context.Context, messages []push.Message) error {
	for start := 0; start < len(messages); start += push.MaxBatchSize {
		end := start + push.MaxBatchSize
		if end > len(messages) {
			end = len(messages)
		}
		tickets, err := h.sender.Send(ctx, messages[start:end])
		if err != nil {
			return err
		}
		for i, ticket := range tickets {
			if ticket.Status != push.TicketOK {
				h.logger.Warn("Push ticket reported an error",
					zap.String("token", messages[start+i].Token),
					zap.String("error", ticket.Message))
			}
		}
	}
	return nil
}
