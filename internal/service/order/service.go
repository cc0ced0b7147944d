package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/messaging"
	repo "github.com/Additional-Code/menudesk/internal/repository/order"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/menudesk/service/order")

// EventOrderCreated is the bus event type published after a remote insert.
const EventOrderCreated = "order.created"

// Source tells where a result was served from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Remote is the hosted order store.
type Remote interface {
	Create(ctx context.Context, order *entity.Order) error
	ListByTenant(ctx context.Context, tenantID string) ([]entity.Order, error)
	GetByID(ctx context.Context, tenantID string, id int64) (*entity.Order, error)
	UpdateStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) (int64, error)
	DeleteCreatedBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}

// Options tunes a Service.
type Options struct {
	Retention     time.Duration
	RemoteTimeout time.Duration
	Now           func() time.Time
	// Location is the zone summary windows are computed in.
	Location *time.Location
}

// Service is the order gateway: remote store first, local store on failure.
type Service struct {
	remote    Remote
	local     *localstore.Store
	logger    *zap.Logger
	publisher messaging.Client
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	location  *time.Location

	// localMu serialises read-modify-write cycles on local snapshots.
	localMu     sync.Mutex
	lastLocalID int64
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Local      *localstore.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Local, p.Publisher, p.Logger, Options{
		Retention:     p.Config.Orders.Retention,
		RemoteTimeout: p.Config.Orders.RemoteTimeout,
	})
}

// New builds a Service over any Remote implementation.
func New(remote Remote, local *localstore.Store, publisher messaging.Client, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retention <= 0 {
		opts.Retention = 8 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		remote:    remote,
		local:     local,
		logger:    logger,
		publisher: publisher,
		retention: opts.Retention,
		timeout:   opts.RemoteTimeout,
		now:       func() time.Time { return opts.Now().UTC() },
		location:  opts.Location,
	}
}

// Submit records a new order. Remote failures are absorbed by storing the
// order locally; only invalid input, or losing both stores, is an error.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*entity.Order, Source, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Submit", trace.WithAttributes(
		attribute.String("tenant.id", in.TenantID),
		attribute.String("order.fulfillment", string(in.Location.Fulfillment())),
	))
	defer span.End()

	order := &entity.Order{
		TenantID:     in.TenantID,
		CustomerName: in.CustomerName,
		TableNumber:  tablefield.Encode(in.Location),
		Items:        in.Items,
		Total:        in.Total,
		Status:       entity.StatusPending,
		CreatedAt:    s.now(),
	}

	remoteCtx, cancel := s.remoteContext(ctx)
	err := s.remote.Create(remoteCtx, order)
	cancel()
	if err == nil {
		order.Hydrate()
		s.mirrorLocal(ctx, order.TenantID, func(orders []entity.Order) []entity.Order {
			return append([]entity.Order{*order}, orders...)
		})
		s.publishOrderCreated(ctx, order)
		span.SetAttributes(attribute.Int64("order.id", order.ID))
		return order, SourceRemote, nil
	}

	span.RecordError(err)
	s.logger.Warn("order submission failed remotely; storing locally",
		zap.String("tenant_id", in.TenantID), zap.Error(err))

	if err := s.storeLocally(ctx, order); err != nil {
		span.SetStatus(codes.Error, "local fallback failed")
		s.logger.Error("order could not be stored locally", zap.String("tenant_id", in.TenantID), zap.Error(err))
		return nil, "", errorbank.Unavailable("order could not be recorded", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.Bool("order.offline", true))
	return order, SourceLocal, nil
}

// List sweeps expired orders, then returns the tenant's orders newest first.
// When the remote store fails the local snapshot is returned instead.
func (s *Service) List(ctx context.Context, tenantID string) ([]entity.Order, Source, error) {
	if tenantID == "" {
		return nil, "", errorbank.BadRequest("tenant is required")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	s.Sweep(ctx, tenantID)

	remoteCtx, cancel := s.remoteContext(ctx)
	rows, err := s.remote.ListByTenant(remoteCtx, tenantID)
	cancel()
	if err == nil {
		for i := range rows {
			rows[i].Hydrate()
		}
		merged := s.refreshLocal(ctx, tenantID, rows)
		span.SetAttributes(attribute.Int("orders.count", len(merged)), attribute.String("orders.source", string(SourceRemote)))
		return merged, SourceRemote, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}

	span.RecordError(err)
	s.logger.Warn("fetching orders failed remotely; serving local snapshot",
		zap.String("tenant_id", tenantID), zap.Error(err))

	orders, lerr := s.local.LoadOrders(ctx, tenantID)
	if lerr != nil {
		s.logger.Error("local snapshot unavailable", zap.String("tenant_id", tenantID), zap.Error(lerr))
		orders = []entity.Order{}
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)), attribute.String("orders.source", string(SourceLocal)))
	return orders, SourceLocal, nil
}

// UpdateStatus moves order id of tenantID to status. The update is always
// scoped by tenant; remote failures fall back to the local snapshot and are
// not reported.
func (s *Service) UpdateStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) error {
	if tenantID == "" {
		return errorbank.BadRequest("tenant is required")
	}
	if !status.Valid() {
		return errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", string(status)))
	}
	if status == entity.StatusPending {
		return errorbank.Unprocessable("orders cannot return to pending")
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	remoteCtx, cancel := s.remoteContext(ctx)
	affected, err := s.remote.UpdateStatus(remoteCtx, tenantID, id, status)
	cancel()
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("status update failed remotely; updating local snapshot",
			zap.String("tenant_id", tenantID), zap.Int64("id", id), zap.Error(err))
		if _, lerr := s.setLocalStatus(ctx, tenantID, id, status); lerr != nil {
			s.logger.Error("local status update failed", zap.Int64("id", id), zap.Error(lerr))
		}
		return nil
	}

	found, lerr := s.setLocalStatus(ctx, tenantID, id, status)
	if lerr != nil {
		s.logger.Warn("local snapshot not updated", zap.Int64("id", id), zap.Error(lerr))
	}
	if affected == 0 && !found {
		found = s.alreadyInStatus(ctx, tenantID, id, status)
	}
	if affected == 0 && !found {
		return errorbank.NotFound("order not found or status change not allowed",
			errorbank.WithDetail("id", id), errorbank.WithDetail("status", string(status)))
	}
	return nil
}

// alreadyInStatus reports whether the stored order already holds status.
// Some drivers count changed rows rather than matched ones, so a repeated
// update affects nothing.
func (s *Service) alreadyInStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) bool {
	remoteCtx, cancel := s.remoteContext(ctx)
	defer cancel()
	stored, err := s.remote.GetByID(remoteCtx, tenantID, id)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("order lookup failed", zap.String("tenant_id", tenantID), zap.Int64("id", id), zap.Error(err))
		}
		return false
	}
	return stored.Status == status
}

func (s *Service) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) publishOrderCreated(ctx context.Context, order *entity.Order) {
	if s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		ID:          order.ID,
		TenantID:    order.TenantID,
		Fulfillment: string(order.Fulfillment()),
		Total:       order.Total.StringFixed(2),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("%s-%d", order.TenantID, order.ID))
	if err := s.publisher.Publish(ctx, EventOrderCreated, key, payload); err != nil {
		s.logger.Error("publish order created", zap.Error(err))
	}
}

// OrderCreatedEvent is emitted when a new order is persisted remotely.
type OrderCreatedEvent struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Fulfillment string    `json:"fulfillment_type"`
	Total       string    `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
