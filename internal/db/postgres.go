// Package db owns the Postgres connection pool and the schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolOptions sizes the pool. Zero values fall back to the defaults below.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

const (
	defaultMaxConns = 25
	defaultMinConns = 5
)

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func poolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = defaultMinConns
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("pool min conns %d exceeds max conns %d", cfg.MinConns, cfg.MaxConns)
	}

	// Pool tuning for a chat API:
	//
	// MaxConns (DB_MAX_CONNS, 25): every send, mark-read and unread fan-out
	//   holds a connection briefly. 25 leaves headroom under a stock
	//   max_connections of 100 for migrations and a second replica.
	//
	// MinConns (DB_MIN_CONNS, 5): the first requests after a quiet spell
	//   skip the connect handshake.
	//
	// MaxConnLifetime (1h): picks up DNS changes and failovers.
	//
	// MaxConnIdleTime (20min): hands slots back to Postgres off-peak.
	//
	// HealthCheckPeriod (1min): dead idle connections are found by the pool,
	//   not by a user's request.
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 20 * time.Minute
	cfg.HealthCheckPeriod = 1 * time.Minute
	return cfg, nil
}

// New creates a connection pool from a DATABASE_URL style connection string
// and pings it before returning.
func New(ctx context.Context, databaseURL string, opts PoolOptions, logger *zap.Logger) (*DB, error) {
	cfg, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return &DB{pool: pool, logger: logger}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

// Pool is handed to the stores; *pgxpool.Pool satisfies postgres.PgxPool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
