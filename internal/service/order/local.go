package order

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/entity"
)

// storeLocally gives order a fallback id and prepends it to the tenant's
// snapshot.
func (s *Service) storeLocally(ctx context.Context, order *entity.Order) error {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	orders, err := s.local.LoadOrders(ctx, order.TenantID)
	if err != nil {
		return err
	}

	order.ID = s.nextLocalID(orders)
	order.Status = entity.StatusPending
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	order.Offline = true
	order.Hydrate()

	return s.local.SaveOrders(ctx, order.TenantID, append([]entity.Order{*order}, orders...))
}

// nextLocalID derives an id from the clock, kept strictly above every id seen
// in the snapshot and every id handed out by this process.
func (s *Service) nextLocalID(existing []entity.Order) int64 {
	id := s.now().UnixMilli()
	if id <= s.lastLocalID {
		id = s.lastLocalID + 1
	}
	for _, o := range existing {
		if o.ID >= id {
			id = o.ID + 1
		}
	}
	s.lastLocalID = id
	return id
}

// mirrorLocal applies fn to the tenant's snapshot. Failures are logged only.
func (s *Service) mirrorLocal(ctx context.Context, tenantID string, fn func([]entity.Order) []entity.Order) {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	orders, err := s.local.LoadOrders(ctx, tenantID)
	if err != nil {
		s.logger.Warn("local snapshot not updated", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	if err := s.local.SaveOrders(ctx, tenantID, fn(orders)); err != nil {
		s.logger.Warn("local snapshot not updated", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// refreshLocal replaces the snapshot with the remote rows plus the orders
// that so far only exist locally, and returns that merged list newest first.
func (s *Service) refreshLocal(ctx context.Context, tenantID string, remote []entity.Order) []entity.Order {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	merged := remote
	cached, err := s.local.LoadOrders(ctx, tenantID)
	if err != nil {
		s.logger.Warn("local snapshot unreadable; overwriting", zap.String("tenant_id", tenantID), zap.Error(err))
	} else {
		seen := make(map[int64]struct{}, len(remote))
		for _, o := range remote {
			seen[o.ID] = struct{}{}
		}
		for _, o := range cached {
			if _, ok := seen[o.ID]; o.Offline && !ok {
				merged = append(merged, o)
			}
		}
		if len(merged) != len(remote) {
			sort.SliceStable(merged, func(i, j int) bool {
				return merged[i].CreatedAt.After(merged[j].CreatedAt)
			})
		}
	}

	if err := s.local.SaveOrders(ctx, tenantID, merged); err != nil {
		s.logger.Warn("local snapshot not refreshed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return merged
}

// setLocalStatus applies a status change to the snapshot. It reports whether
// the order was present and allowed to move.
func (s *Service) setLocalStatus(ctx context.Context, tenantID string, id int64, status entity.OrderStatus) (bool, error) {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	orders, err := s.local.LoadOrders(ctx, tenantID)
	if err != nil {
		return false, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if !orders[i].Status.CanMoveTo(status) {
			return false, nil
		}
		if orders[i].Status == status {
			return true, nil
		}
		orders[i].Status = status
		return true, s.local.SaveOrders(ctx, tenantID, orders)
	}
	return false, nil
}
