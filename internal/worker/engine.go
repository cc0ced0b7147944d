package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/messaging"
)

const maxConsumeBackoff = 30 * time.Second

var meter = otel.Meter("github.com/Additional-Code/menudesk/worker")

// HandlerRegistration binds a bus event type to its handler.
type HandlerRegistration struct {
	Event   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the bus and routes each message to the handler registered
// for its event type.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Worker
	enabled  bool
	handlers map[string]messaging.Handler

	processed metric.Int64Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// NewEngine builds the engine. Two handlers for one event is an error.
func NewEngine(p Params) (*Engine, error) {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Event == "" || r.Handler == nil {
			continue
		}
		if _, dup := handlers[r.Event]; dup {
			return nil, fmt.Errorf("worker: duplicate handler for event %q", r.Event)
		}
		handlers[r.Event] = r.Handler
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := p.Config.Messaging.Workers
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	e := &Engine{
		client:   p.Client,
		logger:   logger.Named("worker"),
		cfg:      cfg,
		enabled:  p.Config.Messaging.Enabled && cfg.Enabled,
		handlers: handlers,
	}
	e.processed, _ = meter.Int64Counter("menudesk.worker.messages",
		metric.WithDescription("Bus messages handled, by event and outcome"))
	return e, nil
}

func (e *Engine) start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go func(workerID int) {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}(i)
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", concurrency),
		zap.Int("handlers", len(e.handlers)),
		zap.Int("max_attempts", e.cfg.MaxAttempts))
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < maxConsumeBackoff {
			backoff *= 2
		}
	}
}

// dispatch runs the message's handler up to MaxAttempts times. A message that
// still fails is logged and acknowledged so it cannot wedge the partition;
// only shutdown leaves it unacknowledged.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	event := msg.EventType()
	handler, ok := e.handlers[event]
	if !ok {
		e.logger.Debug("no handler for event", zap.String("event", event), zap.Int64("offset", msg.Offset))
		e.count(ctx, event, "skipped")
		return nil
	}

	log := e.logger.With(zap.String("event", event), zap.Int64("offset", msg.Offset), zap.Int("worker", workerID))
	delay := e.cfg.RetryDelay
	var err error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err = e.invoke(ctx, handler, msg); err == nil {
			log.Debug("message handled", zap.Int("attempt", attempt))
			e.count(ctx, event, "ok")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("handler failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == e.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	log.Error("message dropped after retries", zap.Int("attempts", e.cfg.MaxAttempts), zap.Error(err))
	e.count(ctx, event, "dropped")
	return nil
}

func (e *Engine) invoke(ctx context.Context, handler messaging.Handler, msg messaging.Message) (err error) {
	if e.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.HandlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

func (e *Engine) count(ctx context.Context, event, outcome string) {
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}
