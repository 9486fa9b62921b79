package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the media_sources table if needed. Keeping the
// migration in code lets docker-compose bootstrap a fresh stack.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS media_sources (
	scope TEXT NOT NULL,
	target_id BIGINT NOT NULL,
	source_name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_url TEXT NOT NULL,
	vendor_source_id TEXT NOT NULL,
	quality TEXT NOT NULL,
	language TEXT NOT NULL,
	is_vip_only BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scope, target_id, source_type)
);
CREATE INDEX IF NOT EXISTS idx_media_sources_target ON media_sources(target_id);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
