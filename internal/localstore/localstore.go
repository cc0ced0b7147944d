// Package localstore keeps per-tenant order snapshots and operator preferences
// in the local durable cache.
//
// Order snapshots are whole-list values: every write replaces the tenant's
// list. The packed table_number field is stored verbatim and locations are
// decoded again on load.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/cache"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
)

const autoPrintKey = "preferences:auto_print"

// Module provides the local store to Fx.
var Module = fx.Provide(New)

// Store reads and writes snapshots through a cache.Store.
type Store struct {
	kv     cache.Store
	prefix string
	logger *zap.Logger
}

// New builds a Store using the configured key prefix.
func New(kv cache.Store, cfg config.Config, logger *zap.Logger) *Store {
	return &Store{kv: kv, prefix: cfg.Orders.LocalKeyPrefix, logger: logger}
}

func (s *Store) ordersKey(tenantID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, tenantID)
}

// LoadOrders returns the tenant's snapshot. A missing snapshot is an empty list.
func (s *Store) LoadOrders(ctx context.Context, tenantID string) ([]entity.Order, error) {
	raw, err := s.kv.Get(ctx, s.ordersKey(tenantID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return []entity.Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local orders: %w", err)
	}

	var orders []entity.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode local orders: %w", err)
	}
	for i := range orders {
		orders[i].Hydrate()
	}
	return orders, nil
}

// SaveOrders replaces the tenant's snapshot.
func (s *Store) SaveOrders(ctx context.Context, tenantID string, orders []entity.Order) error {
	if orders == nil {
		orders = []entity.Order{}
	}
	raw, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode local orders: %w", err)
	}
	if err := s.kv.Set(ctx, s.ordersKey(tenantID), raw, cache.NoExpiry); err != nil {
		return fmt.Errorf("write local orders: %w", err)
	}
	return nil
}

// RemoveOrders drops the tenant's snapshot.
func (s *Store) RemoveOrders(ctx context.Context, tenantID string) error {
	return s.kv.Delete(ctx, s.ordersKey(tenantID))
}

// AutoPrint reports the stored auto-print preference. Read failures are
// logged and treated as disabled.
func (s *Store) AutoPrint(ctx context.Context) bool {
	raw, err := s.kv.Get(ctx, autoPrintKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("read auto-print preference failed", zap.Error(err))
		}
		return false
	}
	enabled, err := strconv.ParseBool(string(raw))
	return err == nil && enabled
}

// SetAutoPrint persists the auto-print preference.
func (s *Store) SetAutoPrint(ctx context.Context, enabled bool) error {
	return s.kv.Set(ctx, autoPrintKey, []byte(strconv.FormatBool(enabled)), cache.NoExpiry)
}
