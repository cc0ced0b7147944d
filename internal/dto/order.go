package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

// OrderItemPayload is one cart line as sent and returned over the wire.
type OrderItemPayload struct {
	DishID   string          `json:"dish_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// SubmitOrderRequest is the customer checkout body.
type SubmitOrderRequest struct {
	CustomerName     string             `json:"customer_name"`
	FulfillmentType  string             `json:"fulfillment_type"`
	TableNumber      string             `json:"table_number"`
	VerificationCode string             `json:"verification_code"`
	Phone            string             `json:"phone"`
	Address          string             `json:"address"`
	Items            []OrderItemPayload `json:"items"`
	Total            decimal.Decimal    `json:"total"`
}

// Location builds the fulfillment details. Unknown types yield nil.
func (r SubmitOrderRequest) Location() tablefield.Location {
	switch tablefield.FulfillmentType(strings.ToLower(strings.TrimSpace(r.FulfillmentType))) {
	case tablefield.FulfillmentDineIn, "":
		return tablefield.DineIn{Table: strings.TrimSpace(r.TableNumber), Code: strings.TrimSpace(r.VerificationCode)}
	case tablefield.FulfillmentDelivery:
		return tablefield.Delivery{Phone: strings.TrimSpace(r.Phone), Address: strings.TrimSpace(r.Address)}
	default:
		return nil
	}
}

// OrderItems converts the cart lines into dish snapshots.
func (r SubmitOrderRequest) OrderItems() []entity.OrderItem {
	items := make([]entity.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, entity.OrderItem{
			Dish:     entity.DishSnapshot{ID: it.DishID, Name: it.Name, Price: it.Price},
			Quantity: it.Quantity,
		})
	}
	return items
}

// UpdateStatusRequest moves an order along the kitchen flow.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AutoPrintRequest toggles automatic receipt printing.
type AutoPrintRequest struct {
	Enabled *bool `json:"enabled"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID               int64              `json:"id"`
	TenantID         string             `json:"tenant_id"`
	CustomerName     string             `json:"customer_name"`
	FulfillmentType  string             `json:"fulfillment_type"`
	TableNumber      string             `json:"table_number,omitempty"`
	VerificationCode string             `json:"verification_code,omitempty"`
	Phone            string             `json:"phone,omitempty"`
	Address          string             `json:"address,omitempty"`
	Items            []OrderItemPayload `json:"items"`
	Total            decimal.Decimal    `json:"total"`
	Status           string             `json:"status"`
	Offline          bool               `json:"offline,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// FromOrder maps an order to its wire form, unpacking the location.
func FromOrder(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		TenantID:        o.TenantID,
		CustomerName:    o.CustomerName,
		FulfillmentType: string(o.Fulfillment()),
		Items:           make([]OrderItemPayload, 0, len(o.Items)),
		Total:           o.Total,
		Status:          string(o.Status),
		Offline:         o.Offline,
		CreatedAt:       o.CreatedAt,
	}
	switch loc := o.Location.(type) {
	case tablefield.DineIn:
		resp.TableNumber, resp.VerificationCode = loc.Table, loc.Code
	case tablefield.Delivery:
		resp.Phone, resp.Address = loc.Phone, loc.Address
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemPayload{
			DishID:   it.Dish.ID,
			Name:     it.Dish.Name,
			Price:    it.Dish.Price,
			Quantity: it.Quantity,
		})
	}
	return resp
}

// FromOrders maps a list, never returning nil.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
