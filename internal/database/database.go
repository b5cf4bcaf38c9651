// Package database provides PostgreSQL connection management and schema
// migration using pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.Database, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		logger.Warn("db connect attempt failed",
			"attempt", attempt, "max_attempts", connectAttempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// schema is idempotent; it runs on every start.
//
// Slot rows are never deleted. The unique (restaurant_id, display_number)
// constraint is what turns a lost race to create the same new number into a
// retryable error instead of a duplicate.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                   UUID PRIMARY KEY,
		restaurant_id        BIGINT      NOT NULL,
		display_order_number INTEGER     NULL,
		order_number         TEXT        NOT NULL DEFAULT '',
		customer_name        TEXT        NOT NULL DEFAULT '',
		customer_phone       TEXT        NOT NULL DEFAULT '',
		status               TEXT        NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_restaurant_display
		ON orders (restaurant_id, display_order_number, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_restaurant_created
		ON orders (restaurant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS display_order_slots (
		id                  BIGSERIAL PRIMARY KEY,
		restaurant_id       BIGINT      NOT NULL,
		display_number      INTEGER     NOT NULL CHECK (display_number BETWEEN 1 AND 9999),
		status              TEXT        NOT NULL CHECK (status IN ('available', 'allocated', 'cooldown')),
		current_order_id    UUID        NULL,
		allocated_at        TIMESTAMPTZ NULL,
		cooldown_expires_at TIMESTAMPTZ NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_display_order_slots_restaurant_number UNIQUE (restaurant_id, display_number),
		CONSTRAINT ck_display_order_slots_order CHECK ((status = 'available') = (current_order_id IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_display_order_slots_claim
		ON display_order_slots (restaurant_id, status, display_number)`,
	`CREATE INDEX IF NOT EXISTS idx_display_order_slots_order
		ON display_order_slots (current_order_id)`,
}

// Migrate creates the tables and indexes the service needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
