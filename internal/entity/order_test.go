package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

func TestCanMoveTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPreparing, StatusCompleted, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCancelled, StatusCancelled, true},
		{StatusPreparing, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPreparing, false},
	}

	for _, testCase := range tests {
		t.Run(string(testCase.from)+"->"+string(testCase.to), func(t *testing.T) {
			assert.Equal(t, testCase.allowed, testCase.from.CanMoveTo(testCase.to))
		})
	}
}

func TestItemsTotal(t *testing.T) {
	items := []OrderItem{
		{Dish: DishSnapshot{ID: "1", Name: "Chorba", Price: decimal.RequireFromString("350.50")}, Quantity: 2},
		{Dish: DishSnapshot{ID: "2", Name: "Bourek", Price: decimal.NewFromInt(120)}, Quantity: 3},
	}

	assert.True(t, ItemsTotal(items).Equal(decimal.RequireFromString("1061")))
	assert.True(t, ItemsTotal(nil).IsZero())
}

func TestOrderFulfillmentDecodesLazily(t *testing.T) {
	order := Order{TableNumber: "DELIVERY_V1|||0555|||Oran"}

	assert.Equal(t, tablefield.FulfillmentDelivery, order.Fulfillment())
	assert.Equal(t, tablefield.Delivery{Phone: "0555", Address: "Oran"}, order.Location)
}
