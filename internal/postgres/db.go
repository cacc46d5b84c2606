package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the tables this service owns. The CHECK on stock and
// the unique index on invoice_id are the storage-level backstops for the
// ledger and invoice-generator invariants.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			sku         TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			stock       INTEGER NOT NULL CHECK (stock >= 0),
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                 TEXT PRIMARY KEY,
			invoice_id         TEXT NOT NULL UNIQUE,
			customer_id        TEXT NOT NULL DEFAULT '',
			customer_name      TEXT NOT NULL DEFAULT '',
			cashier_id         TEXT NOT NULL,
			cashier_name       TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL,
			payment_status     TEXT NOT NULL,
			payment_method     TEXT NOT NULL,
			total_cents        BIGINT NOT NULL,
			gateway_order_id   TEXT NOT NULL DEFAULT '',
			gateway_payment_id TEXT NOT NULL DEFAULT '',
			gateway_signature  TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS orders_pending_idx
			ON orders (created_at) WHERE status = 'PENDING' AND payment_status = 'PENDING'`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id         TEXT NOT NULL REFERENCES orders(id),
			product_id       TEXT NOT NULL,
			name             TEXT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			qty              INTEGER NOT NULL CHECK (qty > 0),
			line_total_cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			order_id   TEXT NOT NULL,
			product_id TEXT NOT NULL,
			qty        INTEGER NOT NULL CHECK (qty > 0),
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (order_id, product_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
