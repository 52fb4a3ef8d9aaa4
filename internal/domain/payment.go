package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one payment attempt for an Order. ProviderPaymentID and
// ConversationID are the gateway's identifiers; inbound webhooks may carry
// either one and are correlated through them.
type Payment struct {
	ID                string
	OrderID           string
	ProviderPaymentID string
	ConversationID    string
	Amount            float64
	Status            PaymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
