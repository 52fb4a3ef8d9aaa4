package payment_repo

import (
	"context"

	"marketplace/internal/domain"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// GetByProviderRef correlates an inbound webhook with its Payment. The
	// gateway may supply either its payment id or the conversation token;
	// either one resolves the row.
	GetByProviderRef(ctx context.Context, providerPaymentID, conversationID string) (*domain.Payment, error)

	// UpdateStatus is conditional on the current status; false with no
	// error means the guard did not match (duplicate or out-of-order job).
	UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (bool, error)

	// CompleteAndMarkOrderPaid sets Payment pending->completed and Order
	// created->paid in one transaction, both writes conditional. Returns
	// false when the payment guard does not match (duplicate webhook
	// delivery); the order write matching no row is not an error, the
	// order may legitimately be further along.
	CompleteAndMarkOrderPaid(ctx context.Context, paymentID, orderID string) (bool, error)
}
