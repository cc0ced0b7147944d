package printing

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

const missing = "n/a"

// Line is one printed item row.
type Line struct {
	Quantity int             `json:"quantity"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
}

// Receipt is everything a kitchen ticket shows. It travels as JSON on the bus.
type Receipt struct {
	Restaurant   string                     `json:"restaurant"`
	Currency     string                     `json:"currency"`
	Width        int                        `json:"width"`
	TenantID     string                     `json:"tenant_id"`
	OrderID      int64                      `json:"order_id"`
	CustomerName string                     `json:"customer_name"`
	Fulfillment  tablefield.FulfillmentType `json:"fulfillment_type"`
	Table        string                     `json:"table,omitempty"`
	Code         string                     `json:"code,omitempty"`
	Phone        string                     `json:"phone,omitempty"`
	Address      string                     `json:"address,omitempty"`
	Lines        []Line                     `json:"lines"`
	Total        decimal.Decimal            `json:"total"`
	PrintedAt    time.Time                  `json:"printed_at"`
}

// NewReceipt lays order out for printing at printedAt.
func NewReceipt(order *entity.Order, cfg config.Printing, printedAt time.Time) Receipt {
	r := Receipt{
		Restaurant:   cfg.RestaurantName,
		Currency:     cfg.Currency,
		Width:        cfg.Width,
		TenantID:     order.TenantID,
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Fulfillment:  order.Fulfillment(),
		Total:        order.Total,
		PrintedAt:    printedAt,
		Lines:        make([]Line, 0, len(order.Items)),
	}
	if r.Restaurant == "" {
		r.Restaurant = order.TenantID
	}

	switch loc := order.Location.(type) {
	case tablefield.DineIn:
		r.Table, r.Code = loc.Table, loc.Code
	case tablefield.Delivery:
		r.Phone, r.Address = loc.Phone, loc.Address
	}

	for _, item := range order.Items {
		r.Lines = append(r.Lines, Line{Quantity: item.Quantity, Name: item.Dish.Name, Amount: item.Subtotal()})
	}
	return r
}

// Render produces the fixed-width text ticket.
func (r Receipt) Render() string {
	width := r.Width
	if width < 24 {
		width = 24
	}
	rule := strings.Repeat("-", width)

	var b strings.Builder
	writeln := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	writeln(center(r.Restaurant, width))
	writeln(rule)
	writeln("Date: " + r.PrintedAt.Format("2006-01-02 15:04"))
	writeln(fmt.Sprintf("Order #%d", r.OrderID))
	if r.Fulfillment == tablefield.FulfillmentDelivery {
		writeln("*** DELIVERY ***")
	} else {
		writeln("Table: " + r.Table)
	}
	writeln("Customer: " + r.CustomerName)
	if r.Code != "" {
		writeln("Code: " + r.Code)
	}

	if r.Fulfillment == tablefield.FulfillmentDelivery {
		writeln(rule)
		writeln("Phone: " + orMissing(r.Phone))
		writeln("Address: " + orMissing(r.Address))
	}

	writeln(rule)
	writeln(columns("Qty  Item", "Price", width))
	for _, line := range r.Lines {
		writeln(columns(fmt.Sprintf("%-4s %s", fmt.Sprintf("%dx", line.Quantity), line.Name), line.Amount.StringFixed(2), width))
	}
	writeln(rule)
	writeln(columns("TOTAL", strings.TrimSpace(r.Total.StringFixed(2)+" "+r.Currency), width))
	writeln(rule)
	writeln(center("Thank you for your visit!", width))
	return b.String()
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

// columns left-aligns left and right-aligns right, truncating left to fit.
func columns(left, right string, width int) string {
	room := width - utf8.RuneCountInString(right) - 1
	if room < 1 {
		return left + " " + right
	}
	if utf8.RuneCountInString(left) > room {
		left = string([]rune(left)[:room])
	}
	pad := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	return left + strings.Repeat(" ", pad) + right
}
