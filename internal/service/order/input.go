package order

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

// SubmitInput carries a checkout.
type SubmitInput struct {
	TenantID     string
	CustomerName string
	Location     tablefield.Location
	Items        []entity.OrderItem
	Total        decimal.Decimal
}

// Validate applies the checkout rules. Total must equal the sum of the item
// subtotals.
func (in SubmitInput) Validate() error {
	if strings.TrimSpace(in.TenantID) == "" {
		return errorbank.BadRequest("tenant is required", errorbank.WithField("tenant_id"))
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return errorbank.BadRequest("customer name is required", errorbank.WithField("customer_name"))
	}
	if len(in.Items) == 0 {
		return errorbank.BadRequest("order has no items", errorbank.WithField("items"))
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return errorbank.BadRequest("item quantity must be positive", errorbank.WithDetail("item", i))
		}
		if item.Dish.Price.IsNegative() {
			return errorbank.BadRequest("item price cannot be negative", errorbank.WithDetail("item", i))
		}
	}

	switch loc := in.Location.(type) {
	case tablefield.DineIn:
		if strings.TrimSpace(loc.Table) == "" {
			return errorbank.BadRequest("table is required for dine-in orders", errorbank.WithField("table_number"))
		}
	case tablefield.Delivery:
		if strings.TrimSpace(loc.Phone) == "" || strings.TrimSpace(loc.Address) == "" {
			return errorbank.BadRequest("phone and address are required for delivery orders")
		}
	default:
		return errorbank.BadRequest("fulfillment details are required", errorbank.WithField("fulfillment_type"))
	}

	if expected := entity.ItemsTotal(in.Items); !expected.Equal(in.Total) {
		return errorbank.Unprocessable("total does not match items",
			errorbank.WithDetail("expected", expected.StringFixed(2)),
			errorbank.WithDetail("total", in.Total.StringFixed(2)),
		)
	}
	return nil
}
