package order_repo

import (
	"context"

	"marketplace/internal/domain"
)

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// UpdateStatus performs the conditional transition
	// "SET status=to WHERE id=$1 AND status=from" and reports whether a row
	// changed. A false return with no error means the guard did not match,
	// which callers treat as an idempotent no-op.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)

	// SetCommission persists the escrow-release commission exactly once:
	// the write is guarded on commission IS NULL and the delivered status,
	// and also advances the order to completed. Returns false when the
	// order already carries a commission.
	SetCommission(ctx context.Context, id string, commission float64) (bool, error)
}
