package receipt

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/messaging"
	"github.com/Additional-Code/menudesk/internal/printing"
	"github.com/Additional-Code/menudesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/menudesk/worker/receipt")

// Module registers the receipt print handler.
var Module = fx.Module("worker_receipt",
	fx.Provide(
		fx.Annotate(
			NewPrintHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewPrintHandler prints receipts published by feeds running the bus driver.
func NewPrintHandler(cfg config.Config, logger *zap.Logger) (worker.HandlerRegistration, error) {
	printer, err := printing.NewDevicePrinter(cfg.Printing, logger)
	if err != nil {
		return worker.HandlerRegistration{}, err
	}
	return worker.HandlerRegistration{
		Event:   printing.EventReceiptPrint,
		Handler: printHandler(printer, logger),
	}, nil
}

func printHandler(printer printing.Printer, logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.receipts.print", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var r printing.Receipt
		if err := json.Unmarshal(msg.Value, &r); err != nil {
			logger.Error("failed to decode receipt", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}

		if err := printer.Print(ctx, r); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "print failed")
			return err
		}
		logger.Info("receipt printed", zap.String("tenant_id", r.TenantID), zap.Int64("order_id", r.OrderID))
		return nil
	}
}
