package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/cache"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/messaging"
	repo "github.com/Additional-Code/menudesk/internal/repository/order"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

var errUnreachable = errors.New("remote unreachable")

// fakeRemote mimics the hosted table: tenant scoped, forward-only updates.
type fakeRemote struct {
	mu     sync.Mutex
	rows   []entity.Order
	nextID int64
	down   bool
	// changedRows makes updates report rows changed rather than matched.
	changedRows bool
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeRemote) Create(_ context.Context, order *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errUnreachable
	}
	f.nextID++
	order.ID = f.nextID
	f.rows = append(f.rows, *order)
	return nil
}

func (f *fakeRemote) ListByTenant(_ context.Context, tenantID string) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	out := make([]entity.Order, 0)
	for _, o := range f.rows {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) UpdateStatus(_ context.Context, tenantID string, id int64, status entity.OrderStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errUnreachable
	}
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].TenantID == tenantID && f.rows[i].Status.CanMoveTo(status) {
			if f.changedRows && f.rows[i].Status == status {
				return 0, nil
			}
			f.rows[i].Status = status
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeRemote) GetByID(_ context.Context, tenantID string, id int64) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	for _, o := range f.rows {
		if o.ID == id && o.TenantID == tenantID {
			found := o
			return &found, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRemote) DeleteCreatedBefore(_ context.Context, tenantID string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errUnreachable
	}
	kept := f.rows[:0]
	var deleted int64
	for _, o := range f.rows {
		if o.TenantID == tenantID && o.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	f.rows = kept
	return deleted, nil
}

func (f *fakeRemote) status(id int64) entity.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.ID == id {
			return o.Status
		}
	}
	return ""
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, key []byte, value []byte) error {
	return m.Called(ctx, eventType, key, value).Error(0)
}

func (m *mockPublisher) Consume(ctx context.Context, handler messaging.Handler) error {
	return m.Called(ctx, handler).Error(0)
}

func (m *mockPublisher) Topic() string { return "menudesk.receipts" }

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	remote *fakeRemote
	local  *localstore.Store
	pub    *mockPublisher
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := fixedNow
	remote := &fakeRemote{}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, EventOrderCreated, mock.Anything, mock.Anything).Return(nil).Maybe()

	cfg := config.Config{Orders: config.Orders{LocalKeyPrefix: "restaurant_orders"}}
	local := localstore.New(cache.NewMemoryStore(0), cfg, zap.NewNop())

	svc := New(remote, local, pub, zap.NewNop(), Options{
		Retention:     8 * time.Hour,
		RemoteTimeout: time.Second,
		Now:           func() time.Time { return clock },
		Location:      time.UTC,
	})
	return &fixture{svc: svc, remote: remote, local: local, pub: pub, clock: &clock}
}

func checkout(tenantID string) SubmitInput {
	items := []entity.OrderItem{
		{Dish: entity.DishSnapshot{ID: "1", Name: "Chorba", Price: decimal.NewFromInt(250)}, Quantity: 2},
		{Dish: entity.DishSnapshot{ID: "2", Name: "Kesra", Price: decimal.RequireFromString("40.50")}, Quantity: 1},
	}
	return SubmitInput{
		TenantID:     tenantID,
		CustomerName: "Lina",
		Location:     tablefield.DineIn{Table: "7", Code: "4412"},
		Items:        items,
		Total:        entity.ItemsTotal(items),
	}
}

func TestSubmitRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, source, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)
	assert.EqualValues(t, 1, order.ID)
	assert.Equal(t, entity.StatusPending, order.Status)
	assert.Equal(t, "DINEIN_V1|||7|||4412", order.TableNumber)
	assert.Equal(t, tablefield.DineIn{Table: "7", Code: "4412"}, order.Location)
	assert.False(t, order.Offline)

	cached, err := f.local.LoadOrders(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, order.ID, cached[0].ID)

	f.pub.AssertCalled(t, "Publish", mock.Anything, EventOrderCreated, []byte("tenant-a-1"), mock.Anything)
}

func TestSubmitOfflineThenList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.setDown(true)

	in := checkout("tenant-a")
	in.Location = tablefield.Delivery{Phone: "0555 12 34 56", Address: "Rue Didouche, Alger"}
	order, source, err := f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	assert.Equal(t, fixedNow.UnixMilli(), order.ID)
	assert.True(t, order.Offline)
	assert.Equal(t, entity.StatusPending, order.Status)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	orders, source, err := f.svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.Equal(t, tablefield.Delivery{Phone: "0555 12 34 56", Address: "Rue Didouche, Alger"}, orders[0].Location)

	f.remote.setDown(false)
	_, _, err = f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)

	orders, source, err = f.svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)
	require.Len(t, orders, 2)
	ids := []int64{orders[0].ID, orders[1].ID}
	assert.Contains(t, ids, order.ID)
	assert.Contains(t, ids, int64(1))
}

func TestLocalIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.setDown(true)

	first, _, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)
	second, _, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	orders, _, err := f.svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	cases := map[string]func(*SubmitInput){
		"missing tenant":   func(in *SubmitInput) { in.TenantID = " " },
		"missing customer": func(in *SubmitInput) { in.CustomerName = "" },
		"no items":         func(in *SubmitInput) { in.Items = nil },
		"zero quantity":    func(in *SubmitInput) { in.Items[0].Quantity = 0 },
		"missing table":    func(in *SubmitInput) { in.Location = tablefield.DineIn{} },
		"missing address":  func(in *SubmitInput) { in.Location = tablefield.Delivery{Phone: "0555"} },
		"no location":      func(in *SubmitInput) { in.Location = nil },
		"wrong total":      func(in *SubmitInput) { in.Total = decimal.NewFromInt(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			in := checkout("tenant-a")
			mutate(&in)

			_, _, err := f.svc.Submit(context.Background(), in)
			var appErr *errorbank.AppError
			require.ErrorAs(t, err, &appErr)
			assert.NotEqual(t, errorbank.KindInternal, appErr.Kind())
			assert.Empty(t, f.remote.rows)
		})
	}
}

func TestListSweepsBothStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := entity.Order{ID: 1, TenantID: "tenant-a", Status: entity.StatusCompleted, CreatedAt: fixedNow.Add(-9 * time.Hour)}
	fresh := entity.Order{ID: 2, TenantID: "tenant-a", Status: entity.StatusPending, CreatedAt: fixedNow.Add(-7 * time.Hour)}
	otherTenant := entity.Order{ID: 3, TenantID: "tenant-b", Status: entity.StatusPending, CreatedAt: fixedNow.Add(-9 * time.Hour)}
	f.remote.rows = []entity.Order{stale, fresh, otherTenant}
	f.remote.nextID = 3

	offlineStale := entity.Order{ID: 10, TenantID: "tenant-a", Offline: true, Status: entity.StatusPending, CreatedAt: fixedNow.Add(-8*time.Hour - time.Second)}
	offlineEdge := entity.Order{ID: 11, TenantID: "tenant-a", Offline: true, Status: entity.StatusPending, CreatedAt: fixedNow.Add(-8 * time.Hour)}
	require.NoError(t, f.local.SaveOrders(ctx, "tenant-a", []entity.Order{offlineEdge, offlineStale, stale}))

	orders, source, err := f.svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)

	var ids []int64
	for _, o := range orders {
		ids = append(ids, o.ID)
		assert.False(t, o.CreatedAt.Before(fixedNow.Add(-8*time.Hour)))
	}
	assert.ElementsMatch(t, []int64{2, 11}, ids)
	assert.Equal(t, int64(2), orders[0].ID)

	assert.Len(t, f.remote.rows, 2)

	cached, err := f.local.LoadOrders(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestSweepWhileRemoteDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.setDown(true)

	require.NoError(t, f.local.SaveOrders(ctx, "tenant-a", []entity.Order{
		{ID: 2, TenantID: "tenant-a", CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: 1, TenantID: "tenant-a", CreatedAt: fixedNow.Add(-10 * time.Hour)},
	}))

	result := f.svc.Sweep(ctx, "tenant-a")
	assert.Zero(t, result.Remote)
	assert.Equal(t, 1, result.Local)

	orders, source, err := f.svc.List(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	require.Len(t, orders, 1)
	assert.EqualValues(t, 2, orders[0].ID)
}

func TestUpdateStatusIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, _, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)

	err = f.svc.UpdateStatus(ctx, "tenant-b", order.ID, entity.StatusCompleted)
	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
	assert.Equal(t, entity.StatusPending, f.remote.status(order.ID))
}

func TestUpdateStatusCompletionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, _, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCompleted))
	require.NoError(t, f.svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCompleted))
	assert.Equal(t, entity.StatusCompleted, f.remote.status(order.ID))

	cached, err := f.local.LoadOrders(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, entity.StatusCompleted, cached[0].Status)

	err = f.svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusPreparing)
	assert.Error(t, err)
	assert.Equal(t, entity.StatusCompleted, f.remote.status(order.ID))
}

func TestUpdateStatusIdempotentWithoutLocalSnapshot(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{changedRows: true}
	kv, err := cache.NewStore(nil, config.Config{Cache: config.Cache{Driver: "noop"}}, zap.NewNop())
	require.NoError(t, err)
	local := localstore.New(kv, config.Config{Orders: config.Orders{LocalKeyPrefix: "restaurant_orders"}}, zap.NewNop())
	svc := New(remote, local, nil, zap.NewNop(), Options{
		Retention: 8 * time.Hour,
		Now:       func() time.Time { return fixedNow },
		Location:  time.UTC,
	})

	order, _, err := svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCompleted))
	require.NoError(t, svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCompleted))
	assert.Equal(t, entity.StatusCompleted, remote.status(order.ID))

	err = svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCancelled)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
	err = svc.UpdateStatus(ctx, "tenant-b", order.ID, entity.StatusCompleted)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestUpdateStatusRejectsBadStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.UpdateStatus(ctx, "tenant-a", 1, entity.OrderStatus("served"))
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())

	err = f.svc.UpdateStatus(ctx, "tenant-a", 1, entity.StatusPending)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
}

func TestUpdateStatusFallsBackToLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.setDown(true)

	order, _, err := f.svc.Submit(ctx, checkout("tenant-a"))
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusPreparing))
	require.NoError(t, f.svc.UpdateStatus(ctx, "tenant-a", 999, entity.StatusPreparing))

	cached, err := f.local.LoadOrders(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, entity.StatusPreparing, cached[0].Status)

	f.remote.setDown(false)
	require.NoError(t, f.svc.UpdateStatus(ctx, "tenant-a", order.ID, entity.StatusCompleted))

	cached, err = f.local.LoadOrders(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, cached[0].Status)
}
