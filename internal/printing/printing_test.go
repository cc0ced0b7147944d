package printing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/messaging"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

var printedAt = time.Date(2026, 10, 17, 19, 45, 0, 0, time.UTC)

func printingConfig() config.Printing {
	return config.Printing{RestaurantName: "Dar El Bahdja", Currency: "DZD", Width: 42}
}

func sampleOrder(loc tablefield.Location) *entity.Order {
	items := []entity.OrderItem{
		{Dish: entity.DishSnapshot{Name: "Chakhchoukha", Price: decimal.NewFromInt(650)}, Quantity: 2},
		{Dish: entity.DishSnapshot{Name: "Lben", Price: decimal.NewFromInt(80)}, Quantity: 1},
	}
	return &entity.Order{
		ID:           42,
		TenantID:     "tenant-a",
		CustomerName: "Sofiane",
		TableNumber:  tablefield.Encode(loc),
		Items:        items,
		Total:        entity.ItemsTotal(items),
	}
}

func TestRenderDineIn(t *testing.T) {
	r := NewReceipt(sampleOrder(tablefield.DineIn{Table: "12", Code: "8841"}), printingConfig(), printedAt)
	ticket := r.Render()

	assert.Contains(t, ticket, "Dar El Bahdja")
	assert.Contains(t, ticket, "Date: 2026-10-17 19:45")
	assert.Contains(t, ticket, "Order #42")
	assert.Contains(t, ticket, "Table: 12")
	assert.Contains(t, ticket, "Customer: Sofiane")
	assert.Contains(t, ticket, "Code: 8841")
	assert.Contains(t, ticket, "1300.00")
	assert.Contains(t, ticket, "1380.00 DZD")
	assert.NotContains(t, ticket, "DELIVERY")

	for _, line := range strings.Split(strings.TrimRight(ticket, "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 42, line)
	}
}

func TestRenderDeliveryWithMissingFields(t *testing.T) {
	order := sampleOrder(tablefield.Delivery{Phone: "0661 22 33 44"})
	r := NewReceipt(order, printingConfig(), printedAt)
	ticket := r.Render()

	assert.Equal(t, tablefield.FulfillmentDelivery, r.Fulfillment)
	assert.Contains(t, ticket, "*** DELIVERY ***")
	assert.Contains(t, ticket, "Phone: 0661 22 33 44")
	assert.Contains(t, ticket, "Address: n/a")
	assert.NotContains(t, ticket, "Table:")
	assert.NotContains(t, ticket, "Code:")
}

func TestColumnsTruncatesLongNames(t *testing.T) {
	line := columns("2x   "+strings.Repeat("x", 60), "100.00", 30)
	assert.Len(t, line, 30)
	assert.True(t, strings.HasSuffix(line, "100.00"))
}

func TestSpoolPrinter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	printer, err := NewSpoolPrinter(dir, zap.NewNop())
	require.NoError(t, err)

	receipt := NewReceipt(sampleOrder(tablefield.DineIn{Table: "3"}), printingConfig(), printedAt)
	require.NoError(t, printer.Print(context.Background(), receipt))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "tenant-a-42-"))

	body, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, receipt.Render(), string(body))
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Publish(ctx context.Context, eventType string, key []byte, value []byte) error {
	return m.Called(ctx, eventType, key, value).Error(0)
}

func (m *mockClient) Consume(ctx context.Context, handler messaging.Handler) error {
	return m.Called(ctx, handler).Error(0)
}

func (m *mockClient) Topic() string { return "menudesk.receipts" }

func TestBusPrinterPublishesReceipt(t *testing.T) {
	client := &mockClient{}
	client.On("Publish", mock.Anything, EventReceiptPrint, []byte("tenant-a-42"), mock.MatchedBy(func(payload []byte) bool {
		var r Receipt
		return json.Unmarshal(payload, &r) == nil && r.OrderID == 42 && r.Table == "5"
	})).Return(nil).Once()

	cfg := config.Config{Printing: config.Printing{Driver: "bus"}}
	printer, err := NewPrinter(cfg, client, zap.NewNop())
	require.NoError(t, err)

	receipt := NewReceipt(sampleOrder(tablefield.DineIn{Table: "5"}), printingConfig(), printedAt)
	require.NoError(t, printer.Print(context.Background(), receipt))
	client.AssertExpectations(t)
}

func TestNewPrinterRejectsUnknownDriver(t *testing.T) {
	_, err := NewPrinter(config.Config{Printing: config.Printing{Driver: "fax"}}, nil, zap.NewNop())
	assert.Error(t, err)
}
