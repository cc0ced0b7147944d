package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Additional-Code/menudesk/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections holds the pools behind the remote order store. Reader is the
// same pool as Writer unless a replica DSN is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the pools and ties them to the Fx lifecycle. Pools connect
// lazily; an unreachable database at boot is only logged since order intake
// falls back to the local store.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	logger = logger.Named("database")
	conns, err := Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				logger.Warn("order store unreachable; serving from local store", zap.Error(err))
				return nil
			}
			logger.Info("database connected", zap.String("driver", Driver(cfg.Database.Driver)))
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})
	return conns, nil
}

// Open builds the writer and reader pools without touching the network.
func Open(cfg config.Database, logger *zap.Logger) (*Connections, error) {
	driver := Driver(cfg.Driver)
	dial, err := dialect(driver)
	if err != nil {
		return nil, err
	}

	writer, err := open(driver, cfg.WriterDSN, cfg, dial, logger)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	conns := &Connections{Writer: writer, Reader: writer}

	if cfg.ReaderDSN != "" && cfg.ReaderDSN != cfg.WriterDSN {
		reader, err := open(driver, cfg.ReaderDSN, cfg, dial, logger)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
		conns.Reader = reader
	}
	return conns, nil
}

// Ping checks both pools, each bounded by its own timeout.
func (c *Connections) Ping(ctx context.Context) error {
	if err := ping(ctx, c.Writer); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := ping(ctx, c.Reader); err != nil {
			return fmt.Errorf("reader: %w", err)
		}
	}
	return nil
}

// Close closes both pools.
func (c *Connections) Close() error {
	err := c.Writer.Close()
	if c.Reader != c.Writer {
		err = errors.Join(err, c.Reader.Close())
	}
	return err
}

// Driver normalises driver aliases to postgres, mysql or sqlite3.
func Driver(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	}
	return name
}

func dialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite3":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func open(driver, dsn string, cfg config.Database, dial schema.Dialect, logger *zap.Logger) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	var sqldb *sql.DB
	switch driver {
	case "postgres":
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	case "mysql":
		var err error
		if sqldb, err = sql.Open("mysql", dsn); err != nil {
			return nil, err
		}
	case "sqlite3":
		var err error
		if sqldb, err = sql.Open("sqlite", dsn); err != nil {
			return nil, err
		}
		// one connection keeps in-memory databases shared
		sqldb.SetMaxOpenConns(1)
	}

	if driver != "sqlite3" {
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.MaxConnLifetime > 0 {
			sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
		}
	}

	db := bun.NewDB(sqldb, dial)
	if cfg.SlowQuery > 0 && logger != nil {
		db.AddQueryHook(&slowQueryHook{threshold: cfg.SlowQuery, logger: logger})
	}
	return db, nil
}

func ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// slowQueryHook logs queries slower than threshold, and every failed query
// other than a plain miss.
type slowQueryHook struct {
	threshold time.Duration
	logger    *zap.Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows)
	if !failed && elapsed < h.threshold {
		return
	}
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
		zap.String("query", truncate(event.Query, 512)),
	}
	if failed {
		h.logger.Warn("query failed", append(fields, zap.Error(event.Err))...)
		return
	}
	h.logger.Warn("slow query", fields...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
