package feed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/notify"
	ordersvc "github.com/Additional-Code/menudesk/internal/service/order"
)

// Manager runs one Session per configured tenant.
type Manager struct {
	sessions []*Session
	byTenant map[string]*Session
	logger   *zap.Logger
}

// Params defines dependencies for constructing Manager.
type Params struct {
	fx.In

	Service    *ordersvc.Service
	Dispatcher *notify.Dispatcher
	Config     config.Config
	Logger     *zap.Logger
}

// Module provides the Manager and ties its sessions to the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewManager),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStart: m.Start,
			OnStop: func(context.Context) error {
				m.Stop()
				return nil
			},
		})
	}),
)

// NewManager builds sessions for cfg.Feed.Tenants.
func NewManager(p Params) (*Manager, error) {
	return NewManagerFor(p.Config.Feed.Tenants, p.Service, p.Dispatcher, Options{
		Interval: p.Config.Feed.PollInterval,
		Logger:   p.Logger,
	})
}

// NewManagerFor builds sessions for tenants sharing one gateway and notifier.
func NewManagerFor(tenants []string, gateway Gateway, notifier Notifier, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Manager{byTenant: make(map[string]*Session), logger: opts.Logger}
	for _, tenant := range tenants {
		tenant = strings.TrimSpace(tenant)
		if tenant == "" {
			continue
		}
		if _, dup := m.byTenant[tenant]; dup {
			return nil, fmt.Errorf("tenant %q listed twice", tenant)
		}
		s := NewSession(tenant, gateway, notifier, opts)
		m.sessions = append(m.sessions, s)
		m.byTenant[tenant] = s
	}
	return m, nil
}

// Start starts every session concurrently.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.sessions) == 0 {
		m.logger.Info("no feed tenants configured")
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.sessions {
		g.Go(func() error { return s.Start(gctx) })
	}
	return g.Wait()
}

// Stop stops every session.
func (m *Manager) Stop() {
	for _, s := range m.sessions {
		s.Stop()
	}
}

// Session returns the tenant's session.
func (m *Manager) Session(tenantID string) (*Session, bool) {
	s, ok := m.byTenant[tenantID]
	return s, ok
}

// Sessions returns all sessions in configuration order.
func (m *Manager) Sessions() []*Session {
	return append([]*Session(nil), m.sessions...)
}
