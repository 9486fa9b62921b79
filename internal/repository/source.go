// Package repository persists the catalog media source records that a
// completed ingestion job produces.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// SourceRecord is the persisted movie/episode source entry.
type SourceRecord struct {
	TargetID       int64            `json:"targetId"`
	Scope          model.Scope      `json:"scope"`
	SourceName     string           `json:"sourceName"`
	SourceType     model.SourceType `json:"sourceType"`
	SourceURL      string           `json:"sourceUrl"`
	VendorSourceID string           `json:"vendorSourceId"`
	Quality        string           `json:"quality"`
	Language       string           `json:"language"`
	IsVipOnly      bool             `json:"isVipOnly"`
	IsActive       bool             `json:"isActive"`
}

// SourceRepository is the opaque fallible upsert the coordinator calls on
// success. The ingestion core does not care what backs it.
type SourceRepository interface {
	UpsertSource(ctx context.Context, rec *SourceRecord) error
}

// PostgresSourceRepository wraps the media_sources SQL used by the pipeline.
type PostgresSourceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSourceRepository constructs a repository.
func NewPostgresSourceRepository(pool *pgxpool.Pool) *PostgresSourceRepository {
	return &PostgresSourceRepository{pool: pool}
}

// UpsertSource inserts or replaces the source for (scope, target, type).
// Re-ingesting the same source kind for a title overwrites the old entry.
func (r *PostgresSourceRepository) UpsertSource(ctx context.Context, rec *SourceRecord) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO media_sources
			(scope, target_id, source_name, source_type, source_url, vendor_source_id,
			 quality, language, is_vip_only, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (scope, target_id, source_type) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			source_url = EXCLUDED.source_url,
			vendor_source_id = EXCLUDED.vendor_source_id,
			quality = EXCLUDED.quality,
			language = EXCLUDED.language,
			is_vip_only = EXCLUDED.is_vip_only,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, rec.Scope, rec.TargetID, rec.SourceName, rec.SourceType, rec.SourceURL,
		rec.VendorSourceID, rec.Quality, rec.Language, rec.IsVipOnly, rec.IsActive, now)
	if err != nil {
		return fmt.Errorf("upsert media source: %w", err)
	}
	return nil
}
