package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/notify"
	"github.com/Additional-Code/menudesk/internal/printing"
	ordersvc "github.com/Additional-Code/menudesk/internal/service/order"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

type fakeGateway struct {
	mu        sync.Mutex
	orders    map[string][]entity.Order
	calls     atomic.Int32
	block     chan struct{}
	entered   chan struct{}
	updateErr error
	updates   []entity.OrderStatus
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string][]entity.Order)}
}

func (g *fakeGateway) add(tenantID string, id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := entity.Order{ID: id, TenantID: tenantID, Status: entity.StatusPending, TableNumber: tablefield.Encode(tablefield.DineIn{Table: "1"})}
	g.orders[tenantID] = append([]entity.Order{o}, g.orders[tenantID]...)
}

func (g *fakeGateway) List(ctx context.Context, tenantID string) ([]entity.Order, ordersvc.Source, error) {
	g.calls.Add(1)
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entity.Order(nil), g.orders[tenantID]...), ordersvc.SourceRemote, nil
}

func (g *fakeGateway) UpdateStatus(_ context.Context, _ string, _ int64, status entity.OrderStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, status)
	return g.updateErr
}

type countingPrinter struct{ n atomic.Int32 }

func (p *countingPrinter) Print(context.Context, printing.Receipt) error {
	p.n.Add(1)
	return nil
}

type countingAlerter struct{ n atomic.Int32 }

func (a *countingAlerter) Alert(context.Context) error {
	a.n.Add(1)
	return nil
}

type autoPrintOn struct{}

func (autoPrintOn) AutoPrint(context.Context) bool { return true }

func newDispatcher(t *testing.T) (*notify.Dispatcher, *countingPrinter, *countingAlerter) {
	t.Helper()
	printer, alerter := &countingPrinter{}, &countingAlerter{}
	d, err := notify.New(autoPrintOn{}, printer, alerter, config.Printing{Width: 32}, zap.NewNop())
	require.NoError(t, err)
	return d, printer, alerter
}

func TestExistingOrdersAreNotNotified(t *testing.T) {
	gw := newFakeGateway()
	for id := int64(1); id <= 3; id++ {
		gw.add("tenant-a", id)
	}
	d, printer, alerter := newDispatcher(t)

	s := NewSession("tenant-a", gw, d, Options{Interval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	assert.Len(t, s.Snapshot(), 3)
	assert.Zero(t, printer.n.Load())
	assert.Zero(t, alerter.n.Load())

	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Zero(t, alerter.n.Load())

	gw.add("tenant-a", 4)
	res, err = s.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, res.New, 1)
	assert.EqualValues(t, 4, res.New[0].ID)
	assert.EqualValues(t, 1, printer.n.Load())
	assert.EqualValues(t, 1, alerter.n.Load())

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, printer.n.Load())
	assert.EqualValues(t, 1, alerter.n.Load())
}

func TestSeveralNewOrdersShareOneAlert(t *testing.T) {
	gw := newFakeGateway()
	d, printer, alerter := newDispatcher(t)
	s := NewSession("tenant-a", gw, d, Options{Interval: time.Hour})

	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Seeded)

	gw.add("tenant-a", 10)
	gw.add("tenant-a", 11)
	res, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Seeded)
	assert.Len(t, res.New, 2)
	assert.EqualValues(t, 2, printer.n.Load())
	assert.EqualValues(t, 1, alerter.n.Load())
}

func TestTickerPicksUpNewOrders(t *testing.T) {
	gw := newFakeGateway()
	gw.add("tenant-a", 1)
	d, _, alerter := newDispatcher(t)

	var polled atomic.Int32
	s := NewSession("tenant-a", gw, d, Options{
		Interval: 10 * time.Millisecond,
		OnPoll:   func(PollResult) { polled.Add(1) },
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateBackground, s.State())
	assert.False(t, s.Loading())

	gw.add("tenant-a", 2)
	require.Eventually(t, func() bool { return alerter.n.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(s.Snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, polled.Load(), int32(2))

	s.Stop()
	s.Stop()
	assert.Equal(t, StateStopped, s.State())

	calls := gw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, gw.calls.Load())

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestStartReportsForegroundPoll(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.entered = make(chan struct{}, 1)
	s := NewSession("tenant-a", gw, nil, Options{Interval: time.Hour})
	assert.Equal(t, StateIdle, s.State())

	started := make(chan error, 1)
	go func() { started <- s.Start(context.Background()) }()
	<-gw.entered
	assert.Equal(t, StateForeground, s.State())
	assert.True(t, s.Loading())

	close(gw.block)
	require.NoError(t, <-started)
	assert.Equal(t, StateBackground, s.State())
	assert.False(t, s.Loading())

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
}

func TestOverlappingRefreshesShareOnePoll(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.entered = make(chan struct{}, 4)
	s := NewSession("tenant-a", gw, nil, Options{Interval: time.Hour})

	results := make(chan PollResult, 2)
	go func() {
		res, _ := s.Refresh(context.Background())
		results <- res
	}()
	<-gw.entered

	go func() {
		res, _ := s.Refresh(context.Background())
		results <- res
	}()
	time.Sleep(50 * time.Millisecond)
	close(gw.block)

	first, second := <-results, <-results
	assert.EqualValues(t, 1, gw.calls.Load())
	assert.True(t, first.Shared)
	assert.True(t, second.Shared)
}

func TestUpdateStatusIsOptimistic(t *testing.T) {
	gw := newFakeGateway()
	gw.add("tenant-a", 1)
	gw.updateErr = errors.New("boom")
	s := NewSession("tenant-a", gw, nil, Options{Interval: time.Hour})

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	err = s.UpdateStatus(context.Background(), 1, entity.StatusPreparing)
	assert.Error(t, err)
	assert.Equal(t, entity.StatusPreparing, s.Snapshot()[0].Status)
	assert.Equal(t, []entity.OrderStatus{entity.StatusPreparing}, gw.updates)
}

func TestUpdateStatusRefusesForbiddenMoves(t *testing.T) {
	gw := newFakeGateway()
	gw.add("tenant-a", 1)
	s := NewSession("tenant-a", gw, nil, Options{Interval: time.Hour})

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(context.Background(), 1, entity.StatusCompleted))

	err = s.UpdateStatus(context.Background(), 1, entity.StatusPending)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	err = s.UpdateStatus(context.Background(), 1, entity.StatusCancelled)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	err = s.UpdateStatus(context.Background(), 1, entity.OrderStatus("served"))
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())

	assert.Equal(t, entity.StatusCompleted, s.Snapshot()[0].Status)
	assert.Equal(t, []entity.OrderStatus{entity.StatusCompleted}, gw.updates)

	require.NoError(t, s.UpdateStatus(context.Background(), 1, entity.StatusCompleted))
	assert.Len(t, gw.updates, 2)
}

func TestManagerKeepsTrackersPerTenant(t *testing.T) {
	gw := newFakeGateway()
	gw.add("tenant-a", 1)
	gw.add("tenant-b", 1)
	d, _, alerter := newDispatcher(t)

	m, err := NewManagerFor([]string{"tenant-a", " tenant-b ", ""}, gw, d, Options{Interval: time.Hour})
	require.NoError(t, err)
	require.Len(t, m.Sessions(), 2)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)

	gw.add("tenant-b", 2)
	a, ok := m.Session("tenant-a")
	require.True(t, ok)
	b, ok := m.Session("tenant-b")
	require.True(t, ok)

	res, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.New)

	res, err = b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.New, 1)
	assert.EqualValues(t, 1, alerter.n.Load())

	_, ok = m.Session("tenant-c")
	assert.False(t, ok)
}

func TestManagerRejectsDuplicateTenants(t *testing.T) {
	_, err := NewManagerFor([]string{"a", "a"}, newFakeGateway(), nil, Options{})
	assert.Error(t, err)
}
