package email

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// MailgunSender sends transactional email through the Mailgun API.
type MailgunSender struct {
	client *mailgun.MailgunImpl
	from   string
	logger *zap.Logger
}

func NewMailgunSender(domain, apiKey, from string, l *zap.Logger) *MailgunSender {
	return &MailgunSender{
		client: mailgun.NewMailgun(domain, apiKey),
		from:   from,
		logger: l,
	}
}

func (s *MailgunSender) Send(ctx context.Context, to, subject, html, text string) (string, error) {
	message := s.client.NewMessage(s.from, subject, text, to)
	if html != "" {
		message.SetHtml(html)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, messageID, err := s.client.Send(sendCtx, message)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return "", fmt.Errorf("mailgun send to %s: %w", to, err)
	}

	s.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("message_id", messageID))
	return messageID, nil
}
