package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	order, err := NewOrder("ord-1", "buyer-1", "seller-1", "1:18 GT40", 120)
	require.NoError(t, err)

	assert.Equal(t, OrderStatusCreated, order.Status)
	assert.Nil(t, order.Commission)
	assert.False(t, order.HasCommission())
}

func TestNewOrder_RejectsInvalidData(t *testing.T) {
	_, err := NewOrder("", "buyer-1", "seller-1", "x", 120)
	assert.Error(t, err)

	_, err = NewOrder("ord-1", "buyer-1", "seller-1", "x", 0)
	assert.Error(t, err)

	_, err = NewOrder("ord-1", "buyer-1", "seller-1", "x", -5)
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusCreated, OrderStatusPaid))
	assert.True(t, CanTransition(OrderStatusPaid, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))
	assert.True(t, CanTransition(OrderStatusDelivered, OrderStatusCompleted))
	assert.True(t, CanTransition(OrderStatusDelivered, OrderStatusRefunded))

	assert.False(t, CanTransition(OrderStatusCreated, OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusPaid))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusRefunded))
	assert.False(t, CanTransition(OrderStatusRefunded, OrderStatusPaid))
}

func TestNewEvent_MarshalsPayload(t *testing.T) {
	event, err := NewEvent(EventOrderPaid, "ord-1", &OrderEventPayload{OrderID: "ord-1", Amount: 120})
	require.NoError(t, err)

	assert.Equal(t, EventOrderPaid, event.Name)
	assert.Equal(t, "ord-1", event.EntityID)
	assert.False(t, event.OccurredAt.IsZero())
	assert.Contains(t, string(event.Payload), `"order_id":"ord-1"`)
}
