package order

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/menudesk/internal/dto"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/presentation/http/response"
	service "github.com/Additional-Code/menudesk/internal/service/order"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/menudesk/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/tenants/:tenant/orders")
	g.POST("", h.submit)
	g.GET("", h.list)
	g.GET("/summary", h.summary)
	g.PATCH("/:id/status", h.updateStatus)
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)
	tenant := c.Param("tenant")

	var payload dto.SubmitOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	location := payload.Location()
	if location == nil {
		return b.WithError(errorbank.BadRequest("unknown fulfillment type",
			errorbank.WithDetail("fulfillment_type", payload.FulfillmentType))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.submit", trace.WithAttributes(
		attribute.String("tenant.id", tenant),
	))
	defer span.End()

	order, source, err := h.svc.Submit(ctx, service.SubmitInput{
		TenantID:     tenant,
		CustomerName: strings.TrimSpace(payload.CustomerName),
		Location:     location,
		Items:        payload.OrderItems(),
		Total:        payload.Total,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithSource(string(source)).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	tenant := c.Param("tenant")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(
		attribute.String("tenant.id", tenant),
	))
	defer span.End()

	orders, source, err := h.svc.List(ctx, tenant)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.NoStore().WithSource(string(source)).WithMeta("count", len(orders)).WithData(dto.FromOrders(orders)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	tenant := c.Param("tenant")

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}
	var payload dto.UpdateStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	status := entity.OrderStatus(strings.ToLower(strings.TrimSpace(payload.Status)))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("tenant.id", tenant),
		attribute.Int64("order.id", id),
	))
	defer span.End()

	if err := h.svc.UpdateStatus(ctx, tenant, id, status); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"id": id, "status": status}).Build()
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)
	tenant := c.Param("tenant")

	var day time.Time
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return b.WithError(errorbank.BadRequest("date must be YYYY-MM-DD", errorbank.WithCause(err))).Build()
		}
		day = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.summary", trace.WithAttributes(
		attribute.String("tenant.id", tenant),
	))
	defer span.End()

	summary, source, err := h.svc.Summary(ctx, tenant, service.Range(c.QueryParam("range")), day)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithSource(string(source)).WithData(summary).Build()
}
