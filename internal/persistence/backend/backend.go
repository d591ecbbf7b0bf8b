// Package backend opens the storage backend selected by configuration.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/config"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/memory"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/migrations"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/postgres"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/sqlite"
)

// Backend bundles a repository with the handles that back it. Pool is set
// only for Postgres and DB only for SQL backends.
type Backend struct {
	Name    string
	Repo    domain.SleepLogRepository
	Pool    *pgxpool.Pool
	DB      *sql.DB
	Dialect migrations.Dialect

	closers []func()
}

// Close releases every handle the backend opened.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open connects to the configured backend and, when cfg.AutoMigrate is set,
// brings the schema up to date.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return &Backend{Name: config.BackendMemory, Repo: memory.NewRepository()}, nil
	case config.BackendSQLite:
		return openSQLite(cfg, logger)
	case config.BackendPostgres, "":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openSQLite(cfg config.Config, logger *zap.Logger) (*Backend, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		Name:    config.BackendSQLite,
		Repo:    sqlite.NewRepository(db),
		DB:      db,
		Dialect: migrations.SQLite,
		closers: []func(){func() { _ = db.Close() }},
	}
	if cfg.AutoMigrate {
		if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
			b.Close()
			return nil, err
		}
		logger.Info("sqlite schema up to date", zap.String("path", cfg.SQLitePath))
	}
	return b, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	pool, err := Connect(ctx, cfg.PostgresURL, cfg.StartupRetryAttempts, logger)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	b := &Backend{
		Name:    config.BackendPostgres,
		Repo:    postgres.NewRepository(pool),
		Pool:    pool,
		DB:      db,
		Dialect: migrations.Postgres,
		closers: []func(){pool.Close, func() { _ = db.Close() }},
	}
	if cfg.AutoMigrate {
		if err := migrations.MigrateUp(db, migrations.Postgres); err != nil {
			b.Close()
			return nil, err
		}
		logger.Info("postgres schema up to date")
	}
	return b, nil
}

// Connect opens a pgx pool and pings it, retrying with jittered backoff
// while the database is still starting.
func Connect(ctx context.Context, url string, attempts int, logger *zap.Logger) (*pgxpool.Pool, error) {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("configure postgres pool: %w", err)
	}

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("postgres not ready, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempts, err)
	}
	return pool, nil
}
