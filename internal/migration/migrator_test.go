package migration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/menudesk/internal/database"
	"github.com/Additional-Code/menudesk/internal/entity"
	orderrepo "github.com/Additional-Code/menudesk/internal/repository/order"
)

func TestSQLiteMigrationsMatchOrderModel(t *testing.T) {
	ctx := context.Background()
	sqldb, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewForDB("sqlite", db, zap.NewNop())
	require.NoError(t, err)

	version, pending, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.Equal(t, 1, pending)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))

	version, pending, err = m.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.Zero(t, pending)

	repo := orderrepo.NewRepository(&database.Connections{Writer: db, Reader: db})
	order := &entity.Order{TenantID: "t1", CustomerName: "Walid", TableNumber: "DINEIN_V1|||2|||", Items: []entity.OrderItem{}, Status: entity.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, order))
	assert.NotZero(t, order.ID)

	orders, err := repo.ListByTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	require.NoError(t, m.Down(ctx, 0, true))
	_, err = repo.ListByTenant(ctx, "t1")
	assert.Error(t, err)
}

func TestGooseDialect(t *testing.T) {
	d, err := gooseDialect("pg")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d)

	_, err = gooseDialect("oracle")
	assert.Error(t, err)
}
