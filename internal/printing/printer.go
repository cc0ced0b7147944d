package printing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/messaging"
)

var printTracer = otel.Tracer("github.com/Additional-Code/menudesk/printing")

// EventReceiptPrint is the bus event carrying a Receipt to the print worker.
const EventReceiptPrint = "receipt.print"

// Printer hands a receipt to a printing surface.
type Printer interface {
	Print(ctx context.Context, receipt Receipt) error
}

// Module provides the configured Printer.
var Module = fx.Provide(NewPrinter)

// NewPrinter selects a Printer driver from configuration.
func NewPrinter(cfg config.Config, client messaging.Client, logger *zap.Logger) (Printer, error) {
	switch cfg.Printing.Driver {
	case "spool":
		return NewSpoolPrinter(cfg.Printing.SpoolDir, logger)
	case "bus":
		return &busPrinter{client: client}, nil
	case "log", "":
		return &logPrinter{logger: logger}, nil
	case "noop":
		return noopPrinter{}, nil
	default:
		return nil, fmt.Errorf("unsupported print driver: %s", cfg.Printing.Driver)
	}
}

type noopPrinter struct{}

func (noopPrinter) Print(context.Context, Receipt) error { return nil }

type logPrinter struct {
	logger *zap.Logger
}

func (p *logPrinter) Print(_ context.Context, receipt Receipt) error {
	p.logger.Info("receipt",
		zap.String("tenant_id", receipt.TenantID),
		zap.Int64("order_id", receipt.OrderID),
		zap.String("ticket", receipt.Render()),
	)
	return nil
}

// busPrinter defers printing to whichever worker consumes the receipt topic.
type busPrinter struct {
	client messaging.Client
}

func (p *busPrinter) Print(ctx context.Context, receipt Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	key := []byte(receipt.TenantID + "-" + strconv.FormatInt(receipt.OrderID, 10))
	return p.client.Publish(ctx, EventReceiptPrint, key, payload)
}

// SpoolPrinter drops rendered tickets into a directory watched by the print
// spooler.
type SpoolPrinter struct {
	dir    string
	logger *zap.Logger
}

// NewSpoolPrinter creates dir if needed.
func NewSpoolPrinter(dir string, logger *zap.Logger) (*SpoolPrinter, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &SpoolPrinter{dir: dir, logger: logger}, nil
}

// Print writes the ticket under a temporary name and renames it into place so
// the spooler never picks up a partial file.
func (p *SpoolPrinter) Print(ctx context.Context, receipt Receipt) error {
	_, span := printTracer.Start(ctx, "SpoolPrinter.Print", trace.WithAttributes(
		attribute.String("tenant.id", receipt.TenantID),
		attribute.Int64("order.id", receipt.OrderID),
	))
	defer span.End()

	name := fmt.Sprintf("%s-%d-%d.txt", receipt.TenantID, receipt.OrderID, receipt.PrintedAt.UnixNano())
	tmp, err := os.CreateTemp(p.dir, ".receipt-*")
	if err != nil {
		span.SetStatus(codes.Error, "create failed")
		return fmt.Errorf("create receipt file: %w", err)
	}
	if _, err := tmp.WriteString(receipt.Render()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close receipt: %w", err)
	}

	target := filepath.Join(p.dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		span.SetStatus(codes.Error, "rename failed")
		return fmt.Errorf("spool receipt: %w", err)
	}
	p.logger.Debug("receipt spooled", zap.String("file", target))
	return nil
}

// NewDevicePrinter returns the printer a print worker drives: the spool when
// a directory is configured, the log otherwise. It never returns the bus
// driver, so a worker cannot republish what it consumes.
func NewDevicePrinter(cfg config.Printing, logger *zap.Logger) (Printer, error) {
	if cfg.SpoolDir != "" {
		return NewSpoolPrinter(cfg.SpoolDir, logger)
	}
	return &logPrinter{logger: logger}, nil
}
