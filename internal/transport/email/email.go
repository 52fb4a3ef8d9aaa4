package email

import "context"

// Sender is the outbound transactional email transport.
type Sender interface {
	// Send delivers one message and returns the provider's message id.
	Send(ctx context.Context, to, subject, html, text string) (string, error)
}
