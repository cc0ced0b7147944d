package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
)

const (
	serviceVersion  = "0.3.0"
	shutdownTimeout = 10 * time.Second
	stdoutInterval  = 30 * time.Second
)

// Manager owns the trace and meter providers for one process.
type Manager struct {
	cfg    config.Observability
	logger *zap.Logger
	// diag receives stdout exporter output. It is stderr so the order
	// console keeps stdout to itself.
	diag io.Writer

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
	metricsHandler http.Handler
}

// Module provides the Manager and installs it as the global otel provider
// for the lifetime of the app.
var Module = fx.Options(
	fx.Provide(NewManager),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				m.Install()
				return nil
			},
			OnStop: m.Shutdown,
		})
	}),
)

// NewManager builds providers from cfg.Observability.
func NewManager(cfg config.Config, logger *zap.Logger) (*Manager, error) {
	return New(context.Background(), cfg, logger, os.Stderr)
}

// New builds providers from cfg, sending stdout exporter output to diag.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, diag io.Writer) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if diag == nil {
		diag = io.Discard
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.Observability.ServiceName),
		semconv.ServiceVersion(serviceVersion),
		attribute.String("service.environment", cfg.Observability.Environment),
		attribute.String("menudesk.database.driver", cfg.Database.Driver),
	}
	if len(cfg.Feed.Tenants) > 0 {
		attrs = append(attrs, attribute.StringSlice("menudesk.feed.tenants", cfg.Feed.Tenants))
	}
	res, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}

	m := &Manager{cfg: cfg.Observability, logger: logger.Named("observability"), diag: diag}
	if m.cfg.EnableTracing {
		if err := m.initTracing(ctx, res); err != nil {
			return nil, err
		}
	}
	if m.cfg.EnableMetrics {
		if err := m.initMetrics(res); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Install makes the manager's providers the otel globals.
func (m *Manager) Install() {
	if m.tracerProvider != nil {
		otel.SetTracerProvider(m.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meterProvider != nil {
		otel.SetMeterProvider(m.meterProvider)
	}
	m.logger.Debug("telemetry installed",
		zap.Bool("tracing", m.TracingEnabled()),
		zap.Bool("metrics", m.MetricsEnabled()))
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if m.tracerProvider != nil {
		err = errors.Join(err, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		err = errors.Join(err, m.meterProvider.Shutdown(ctx))
	}
	return err
}

// TracingEnabled reports whether tracing is active.
func (m *Manager) TracingEnabled() bool {
	return m.tracerProvider != nil
}

// MetricsEnabled reports whether metrics are active.
func (m *Manager) MetricsEnabled() bool {
	return m.meterProvider != nil
}

// Meter returns a meter from this manager's provider, or from the global one
// when metrics are off.
func (m *Manager) Meter(name string) metric.Meter {
	if m.meterProvider != nil {
		return m.meterProvider.Meter(name)
	}
	return otel.Meter(name)
}

// MetricsHandler serves the Prometheus registry; nil unless the prometheus
// exporter is configured.
func (m *Manager) MetricsHandler() http.Handler {
	return m.metricsHandler
}

// PrometheusPath returns the configured metrics endpoint path.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}

func (m *Manager) initTracing(ctx context.Context, res *sdkresource.Resource) error {
	exporter, err := m.traceExporter(ctx)
	if err != nil || exporter == nil {
		return err
	}
	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return nil
}

func (m *Manager) traceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(m.cfg.TraceExporter) {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(m.diag), stdouttrace.WithPrettyPrint())
	case "otlp":
		if m.cfg.TraceEndpoint == "" {
			return nil, errors.New("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(m.cfg.TraceEndpoint)}
		if m.cfg.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return otlptracegrpc.New(ctx, opts...)
	case "none":
		return nil, nil
	default:
		m.logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", m.cfg.TraceExporter))
		return nil, nil
	}
}

func (m *Manager) initMetrics(res *sdkresource.Resource) error {
	switch strings.ToLower(m.cfg.MetricsExporter) {
	case "prometheus":
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(promexporter.WithRegisterer(m.registry))
		if err != nil {
			return fmt.Errorf("prometheus exporter: %w", err)
		}
		m.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		m.metricsHandler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(m.diag), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("stdout metric exporter: %w", err)
		}
		m.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutInterval))),
			sdkmetric.WithResource(res),
		)
	case "none":
	default:
		m.logger.Warn("unsupported metrics exporter; metrics disabled", zap.String("exporter", m.cfg.MetricsExporter))
	}
	return nil
}
