package migration

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/db/migrations"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/database"
)

const migrationsRoot = "sql"

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator wraps goose operations over the embedded migrations.
type Migrator struct {
	db      *bun.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	return NewForDB(cfg.Database.Driver, conns.Writer, logger)
}

// NewForDB constructs a migrator for db using driver's dialect.
func NewForDB(driver string, db *bun.DB, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}
	return &Migrator{
		db:      db,
		dialect: dialect,
		dir:     path.Join(migrationsRoot, dialect),
		logger:  logger,
	}, nil
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect(m.dialect)
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db.DB, m.dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}

	version, _ := goose.GetDBVersionContext(ctx, m.db.DB)
	m.logger.Info("migrations applied", zap.String("dialect", m.dialect), zap.Int64("version", version))
	return nil
}

// Version reports the applied schema version and how many embedded
// migrations are still pending.
func (m *Migrator) Version(ctx context.Context) (current int64, pending int, err error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return 0, 0, err
	}

	current, err = goose.EnsureDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return 0, 0, err
	}
	all, err := goose.CollectMigrations(m.dir, 0, goose.MaxVersion)
	if err != nil {
		if isNoMigrationErr(err) {
			return current, 0, nil
		}
		return 0, 0, err
	}
	for _, mig := range all {
		if mig.Version > current {
			pending++
		}
	}
	return current, pending, nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, m.dir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, m.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// gooseDialect doubles as the migrations subdirectory name.
func gooseDialect(driver string) (string, error) {
	switch d := database.Driver(driver); d {
	case "postgres", "mysql", "sqlite3":
		return d, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
