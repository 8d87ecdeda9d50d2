// Package postgres stores synced events in Postgres tables, one row per event.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS buckets (
    name       TEXT PRIMARY KEY,
    category   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS synced_events (
    event_id         UUID PRIMARY KEY,
    bucket           TEXT NOT NULL REFERENCES buckets(name),
    title            TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    ended_at         TIMESTAMPTZ NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL,
    data             JSONB NOT NULL,
    inserted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS synced_events_bucket_started_idx ON synced_events (bucket, started_at);
`

// Repository is a sync sink backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the tables if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// EnsureBucket inserts the bucket row. An existing row yields domain.ErrBucketExists.
func (r *Repository) EnsureBucket(ctx context.Context, name, category string) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO buckets (name, category) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, category)
	if err != nil {
		return fmt.Errorf("insert bucket %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBucketExists
	}
	return nil
}

// InsertEvent stores evt. Re-inserting an event with the same identity is a no-op.
func (r *Repository) InsertEvent(ctx context.Context, bucket string, evt domain.Event) error {
	data := evt.Attributes
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	const insert = `INSERT INTO synced_events (event_id, bucket, title, started_at, ended_at, duration_seconds, data)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (event_id) DO NOTHING`

	_, err = r.pool.Exec(ctx, insert,
		events.ID(bucket, evt).String(),
		bucket,
		evt.Title,
		evt.Start.UTC(),
		evt.End().UTC(),
		evt.Duration.Seconds(),
		payload,
	)
	return err
}
