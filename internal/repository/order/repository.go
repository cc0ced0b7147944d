package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/menudesk/internal/database"
	"github.com/Additional-Code/menudesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/menudesk/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates tenant-scoped read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("tenant.id", order.TenantID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		fail(span, err, "insert failed")
	}
	return err
}

// ListByTenant returns the tenant's orders, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByTenant", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	orders := make([]entity.Order, 0)
	err := r.reader.NewSelect().
		Model(&orders).
		Where("tenant_id = ?", tenantID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		fail(span, err, "select failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// GetByID fetches one of the tenant's orders.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", id),
	))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Where("id = ?", id).
		Where("tenant_id = ?", tenantID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		fail(span, err, "select failed")
		return nil, err
	}
	return order, nil
}

// UpdateStatus sets the status of order id owned by tenantID, but only while
// the current status is a legal predecessor. It reports the matched row count.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	predecessors := status.Predecessors()
	if len(predecessors) == 0 {
		return 0, nil
	}

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Where("tenant_id = ?", tenantID).
		Where("status IN (?)", bun.In(predecessors)).
		Exec(ctx)
	if err != nil {
		fail(span, err, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteCreatedBefore removes the tenant's orders created before cutoff.
func (r *Repository) DeleteCreatedBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteCreatedBefore", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Order)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("created_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		fail(span, err, "delete failed")
		return 0, err
	}
	return res.RowsAffected()
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
