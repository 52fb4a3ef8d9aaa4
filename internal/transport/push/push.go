package push

import "context"

// MaxBatchSize is the transport's documented per-call message cap. Callers
// chunk larger sends.
const MaxBatchSize = 100

type Message struct {
	Token string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

const (
	TicketOK    = "ok"
	TicketError = "error"
)

// Ticket is the per-message delivery receipt returned by the provider.
type Ticket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Sender is the outbound push transport. One call delivers up to
// MaxBatchSize messages and returns one ticket per message, in order.
type Sender interface {
	Send(ctx context.Context, messages []Message) ([]Ticket, error)
}
