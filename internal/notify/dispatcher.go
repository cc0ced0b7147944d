// Package notify turns newly seen orders into receipts and an audible alert.
package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/alert"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/printing"
)

var meter = otel.Meter("github.com/Additional-Code/menudesk/notify")

// Preferences exposes the operator's auto-print switch.
type Preferences interface {
	AutoPrint(ctx context.Context) bool
}

// Result summarises one dispatch.
type Result struct {
	Printed int
	Failed  int
	Alerted bool
}

// Dispatcher prints and announces new orders.
type Dispatcher struct {
	prefs    Preferences
	printer  printing.Printer
	alerter  alert.Alerter
	printCfg config.Printing
	logger   *zap.Logger
	now      func() time.Time

	printed metric.Int64Counter
	failed  metric.Int64Counter
	alerts  metric.Int64Counter
}

// Params defines dependencies for constructing Dispatcher.
type Params struct {
	fx.In

	Local   *localstore.Store
	Printer printing.Printer
	Alerter alert.Alerter
	Config  config.Config
	Logger  *zap.Logger
}

// Module provides the dispatcher to Fx.
var Module = fx.Provide(NewDispatcher)

// NewDispatcher wires a Dispatcher from Fx dependencies.
func NewDispatcher(p Params) (*Dispatcher, error) {
	return New(p.Local, p.Printer, p.Alerter, p.Config.Printing, p.Logger)
}

// New builds a Dispatcher.
func New(prefs Preferences, printer printing.Printer, alerter alert.Alerter, printCfg config.Printing, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		prefs:    prefs,
		printer:  printer,
		alerter:  alerter,
		printCfg: printCfg,
		logger:   logger,
		now:      time.Now,
	}

	var err error
	if d.printed, err = meter.Int64Counter("menudesk.receipts.printed", metric.WithDescription("Receipts handed to the printer")); err != nil {
		return nil, err
	}
	if d.failed, err = meter.Int64Counter("menudesk.receipts.failed", metric.WithDescription("Receipts the printer rejected")); err != nil {
		return nil, err
	}
	if d.alerts, err = meter.Int64Counter("menudesk.alerts", metric.WithDescription("Audible new-order alerts")); err != nil {
		return nil, err
	}
	return d, nil
}

// Dispatch handles one poll cycle's new orders: a receipt per order when
// auto-print is on, then a single alert. Failures are logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, orders []entity.Order) Result {
	var res Result
	if len(orders) == 0 {
		return res
	}
	attrs := metric.WithAttributes(attribute.String("tenant.id", tenantID))

	if d.prefs != nil && d.prefs.AutoPrint(ctx) {
		for i := range orders {
			receipt := printing.NewReceipt(&orders[i], d.printCfg, d.now())
			if err := d.printer.Print(ctx, receipt); err != nil {
				res.Failed++
				d.failed.Add(ctx, 1, attrs)
				d.logger.Warn("receipt print failed",
					zap.String("tenant_id", tenantID),
					zap.Int64("order_id", orders[i].ID),
					zap.Error(err),
				)
				continue
			}
			res.Printed++
			d.printed.Add(ctx, 1, attrs)
		}
	}

	if err := d.alerter.Alert(ctx); err != nil {
		d.logger.Warn("new order alert failed", zap.String("tenant_id", tenantID), zap.Error(err))
	} else {
		res.Alerted = true
		d.alerts.Add(ctx, 1, attrs)
	}

	d.logger.Info("new orders dispatched",
		zap.String("tenant_id", tenantID),
		zap.Int("orders", len(orders)),
		zap.Int("printed", res.Printed),
		zap.Bool("alerted", res.Alerted),
	)
	return res
}
