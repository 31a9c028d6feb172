package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id        BIGINT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT '',
    email     TEXT NOT NULL DEFAULT '',
    chat_id   BIGINT
);

CREATE TABLE IF NOT EXISTS reports (
    id           UUID PRIMARY KEY,
    user_id      BIGINT NOT NULL,
    name         TEXT NOT NULL,
    report_key   TEXT NOT NULL,
    excel_key    TEXT NOT NULL,
    template_key TEXT NOT NULL DEFAULT '',
    generated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_user_generated_idx ON reports (user_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS delivery_logs (
    id            UUID PRIMARY KEY,
    report_id     UUID NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
    user_id       BIGINT NOT NULL,
    method        TEXT NOT NULL,
    status        TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    sent_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS delivery_logs_report_idx ON delivery_logs (report_id);
`

// EnsureSchema creates the tables the service needs if they are missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
