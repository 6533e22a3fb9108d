// Package store provides PostgreSQL persistence for the invoice pipeline:
// dimension scans, staging and rejection writes, the idempotent fact load,
// and the read-only aggregate queries behind the reporting API.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoicepipe/invoicepipe/internal/config"
)

// Repository provides persistence helpers for the pipeline and the
// reporting API. One Repository owns the pool for the duration of a run.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over an existing pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping verifies database reachability.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// NewPool builds and verifies a connection pool from database settings.
// Failure here is a run-level error: nothing can proceed without the store.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
