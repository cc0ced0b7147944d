package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/messaging"
	ordersvc "github.com/Additional-Code/menudesk/internal/service/order"
	"github.com/Additional-Code/menudesk/internal/worker"
)

var (
	workerTracer = otel.Tracer("github.com/Additional-Code/menudesk/worker/order")
	meter        = otel.Meter("github.com/Additional-Code/menudesk/worker/order")
)

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderCreatedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderCreatedHandler audits every order that reached the remote store and
// counts them per tenant and fulfillment type.
func NewOrderCreatedHandler(logger *zap.Logger) worker.HandlerRegistration {
	audit := logger.Named("audit")
	created, _ := meter.Int64Counter("menudesk.orders.created",
		metric.WithDescription("Orders persisted remotely, by tenant and fulfillment"))

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.created", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// malformed payloads would fail on every redelivery
			audit.Error("undecodable order event", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("tenant.id", event.TenantID), attribute.Int64("order.id", event.ID))

		created.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tenant.id", event.TenantID),
			attribute.String("fulfillment", event.Fulfillment),
		))
		audit.Info("order created",
			zap.String("tenant_id", event.TenantID),
			zap.Int64("id", event.ID),
			zap.String("fulfillment", event.Fulfillment),
			zap.String("total", event.Total),
			zap.Time("created_at", event.CreatedAt),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Event:   ordersvc.EventOrderCreated,
		Handler: handler,
	}
}
