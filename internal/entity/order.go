package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

// OrderStatus is the kitchen progress of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Predecessors lists the statuses an order may hold right before moving to s,
// s itself included so repeating an update is a no-op. Pending has no
// predecessors: nothing moves back to it.
func (s OrderStatus) Predecessors() []OrderStatus {
	switch s {
	case StatusPreparing:
		return []OrderStatus{StatusPending, StatusPreparing}
	case StatusCompleted:
		return []OrderStatus{StatusPending, StatusPreparing, StatusCompleted}
	case StatusCancelled:
		return []OrderStatus{StatusPending, StatusPreparing, StatusCancelled}
	default:
		return nil
	}
}

// CanMoveTo reports whether an order in status s may be set to next.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	for _, p := range next.Predecessors() {
		if p == s {
			return true
		}
	}
	return false
}

// DishSnapshot freezes the dish as it was when the order was placed.
type DishSnapshot struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	Dish     DishSnapshot `json:"dish"`
	Quantity int          `json:"quantity"`
}

// Subtotal returns price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Dish.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order stored in the relational database.
//
// TableNumber holds the packed location; Location is its decoded form and is
// rebuilt from TableNumber whenever an order is read.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID           int64               `bun:",pk,autoincrement" json:"id"`
	TenantID     string              `bun:"tenant_id,notnull" json:"tenant_id"`
	CustomerName string              `bun:"customer_name,notnull" json:"customer_name"`
	TableNumber  string              `bun:"table_number" json:"table_number"`
	Items        []OrderItem         `bun:"items,type:jsonb" json:"items"`
	Total        decimal.Decimal     `bun:"total,type:numeric(12,2)" json:"total"`
	Status       OrderStatus         `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	Location     tablefield.Location `bun:"-" json:"-"`

	// Offline marks orders that were only ever written to the local store.
	Offline bool `bun:"-" json:"offline,omitempty"`
}

// Hydrate decodes the packed location.
func (o *Order) Hydrate() {
	o.Location = tablefield.Decode(o.TableNumber)
}

// Fulfillment returns how the order is served, decoding on demand.
func (o *Order) Fulfillment() tablefield.FulfillmentType {
	if o.Location == nil {
		o.Hydrate()
	}
	return o.Location.Fulfillment()
}

// ItemsTotal sums every item subtotal.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
