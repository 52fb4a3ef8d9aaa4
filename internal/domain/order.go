package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// orderTransitions is the closed set of legal status transitions. Every
// status write goes through a conditional UPDATE guarded by the expected
// prior status, so an out-of-order or duplicate job becomes a no-op instead
// of a corrupting write.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {OrderStatusCompleted, OrderStatusRefunded},
}

type Order struct {
	ID         string
	BuyerID    string
	SellerID   string
	Title      string
	Amount     float64
	Commission *float64
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewOrder(id, buyerID, sellerID, title string, amount float64) (*Order, error) {
	if id == "" || buyerID == "" || sellerID == "" || amount <= 0 {
		return nil, errors.New("invalid order data")
	}
	now := time.Now()
	return &Order{
		ID:        id,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Title:     title,
		Amount:    amount,
		Status:    OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransition reports whether from -> to is a legal order transition.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (o *Order) HasCommission() bool {
	return o.Commission != nil
}
