// Package feed keeps an operator's view of a tenant's orders current by
// polling the order gateway, and hands genuinely new orders to the notifier.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/notify"
	ordersvc "github.com/Additional-Code/menudesk/internal/service/order"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

var feedTracer = otel.Tracer("github.com/Additional-Code/menudesk/feed")

var meter = otel.Meter("github.com/Additional-Code/menudesk/feed")

// ErrAlreadyStarted is returned by Start on a running or stopped session.
var ErrAlreadyStarted = errors.New("feed session already started")

// Gateway is the slice of the order service a feed needs.
type Gateway interface {
	List(ctx context.Context, tenantID string) ([]entity.Order, ordersvc.Source, error)
	UpdateStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) error
}

// Notifier receives each poll's new orders.
type Notifier interface {
	Dispatch(ctx context.Context, tenantID string, orders []entity.Order) notify.Result
}

// State is the lifecycle stage of a Session. StateForeground covers the first
// poll Start waits for; StateBackground is the ticker-driven phase after it.
type State string

const (
	StateIdle       State = "idle"
	StateForeground State = "polling_foreground"
	StateBackground State = "polling_background"
	StateStopped    State = "stopped"
)

// PollResult describes one applied poll.
type PollResult struct {
	Orders int
	New    []entity.Order
	Source ordersvc.Source
	// Seeded is true for the poll that primed the tracker.
	Seeded bool
	// Shared is true when the caller joined a poll already in flight.
	Shared bool
}

// Options tunes a Session.
type Options struct {
	Interval time.Duration
	Logger   *zap.Logger
	// OnPoll runs after every successful poll, from the polling goroutine.
	OnPoll func(PollResult)
}

// Session polls one tenant's orders.
type Session struct {
	id       string
	tenantID string
	gateway  Gateway
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger
	onPoll   func(PollResult)

	tracker *Tracker
	group   singleflight.Group

	mu       sync.RWMutex
	orders   []entity.Order
	source   ordersvc.Source
	lastPoll time.Time
	lastErr  error
	state    State
	cancel   context.CancelFunc
	done     chan struct{}

	polls     metric.Int64Counter
	newOrders metric.Int64Counter
}

// NewSession builds an idle session for tenantID.
func NewSession(tenantID string, gateway Gateway, notifier Notifier, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	id := uuid.NewString()
	s := &Session{
		id:       id,
		tenantID: tenantID,
		gateway:  gateway,
		notifier: notifier,
		interval: opts.Interval,
		logger:   opts.Logger.With(zap.String("tenant_id", tenantID), zap.String("session_id", id)),
		onPoll:   opts.OnPoll,
		tracker:  NewTracker(),
		orders:   []entity.Order{},
		state:    StateIdle,
	}
	s.polls, _ = meter.Int64Counter("menudesk.feed.polls", metric.WithDescription("Completed order feed polls"))
	s.newOrders, _ = meter.Int64Counter("menudesk.feed.new_orders", metric.WithDescription("Orders first seen by a feed"))
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// TenantID is the tenant whose orders the session follows.
func (s *Session) TenantID() string { return s.tenantID }

// Loading reports whether the initial foreground poll is still running.
func (s *Session) Loading() bool { return s.State() == StateForeground }

// State reports the lifecycle stage.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the last applied order list.
func (s *Session) Snapshot() []entity.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Source reports where the last applied list came from.
func (s *Session) Source() ordersvc.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// LastPoll returns the time of the last successful poll and the error of the
// latest failed one, if it came after.
func (s *Session) LastPoll() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPoll, s.lastErr
}

// Start runs one poll in the foreground, then keeps polling every interval
// until Stop. A failed first poll is logged; the ticker still starts.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.state = StateForeground
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial order poll failed", zap.Error(err))
	}

	s.mu.Lock()
	if s.state == StateForeground {
		s.state = StateBackground
	}
	s.mu.Unlock()

	go s.run(runCtx)
	s.logger.Info("order feed started", zap.Duration("interval", s.interval))
	return nil
}

// Stop ends polling and waits for the loop to exit. It is safe to call more
// than once.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	if s.state == StateForeground || s.state == StateBackground {
		s.state = StateStopped
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("order feed stopped")
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("order poll failed", zap.Error(err))
			}
		}
	}
}

// Refresh polls now. A call made while another poll is in flight waits for
// and shares that poll's result.
func (s *Session) Refresh(ctx context.Context) (PollResult, error) {
	v, err, shared := s.group.Do("poll", func() (any, error) {
		return s.poll(ctx)
	})
	if err != nil {
		return PollResult{}, err
	}
	res := v.(PollResult)
	res.Shared = shared
	return res, nil
}

func (s *Session) poll(ctx context.Context) (PollResult, error) {
	ctx, span := feedTracer.Start(ctx, "Feed.Poll")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", s.tenantID))

	orders, source, err := s.gateway.List(ctx, s.tenantID)
	if err != nil {
		span.RecordError(err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return PollResult{}, err
	}

	seeding := !s.tracker.Seeded()
	fresh := s.tracker.Observe(orders)

	s.mu.Lock()
	s.orders = orders
	s.source = source
	s.lastPoll = time.Now()
	s.lastErr = nil
	s.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("tenant.id", s.tenantID), attribute.String("source", string(source)))
	s.polls.Add(ctx, 1, attrs)

	if len(fresh) > 0 {
		s.newOrders.Add(ctx, int64(len(fresh)), attrs)
		if s.notifier != nil {
			s.notifier.Dispatch(ctx, s.tenantID, fresh)
		}
	}

	res := PollResult{Orders: len(orders), New: fresh, Source: source, Seeded: seeding}
	if s.onPoll != nil {
		s.onPoll(res)
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)), attribute.Int("orders.new", len(fresh)))
	return res, nil
}

// UpdateStatus changes the order in the snapshot first, then asks the
// gateway. The snapshot keeps the new status even when the gateway fails.
// Unknown statuses and moves the order's current status forbids are refused
// before either happens.
func (s *Session) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	if !status.Valid() {
		return errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", string(status)))
	}

	s.mu.Lock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		if current := s.orders[i].Status; !current.CanMoveTo(status) {
			s.mu.Unlock()
			return errorbank.Unprocessable("status change not allowed",
				errorbank.WithDetail("id", id),
				errorbank.WithDetail("from", string(current)),
				errorbank.WithDetail("to", string(status)))
		}
		s.orders[i].Status = status
		break
	}
	s.mu.Unlock()

	return s.gateway.UpdateStatus(ctx, s.tenantID, id, status)
}
