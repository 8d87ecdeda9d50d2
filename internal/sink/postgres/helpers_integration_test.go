//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type storedEvent struct {
	EventID         string
	Bucket          string
	Title           string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds float64
	Data            map[string]any
}

func listEvents(ctx context.Context, r *Repository, bucket string) ([]storedEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_id::text, bucket, title, started_at, ended_at, duration_seconds, data
        FROM synced_events WHERE bucket=$1 ORDER BY started_at, duration_seconds, event_id`, bucket)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedEvent
	for rows.Next() {
		var (
			evt storedEvent
			raw []byte
		)
		if err := rows.Scan(&evt.EventID, &evt.Bucket, &evt.Title, &evt.StartedAt, &evt.EndedAt, &evt.DurationSeconds, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &evt.Data); err != nil {
			return nil, fmt.Errorf("decode event %s data: %w", evt.EventID, err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func truncate(ctx context.Context, r *Repository) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE synced_events, buckets`)
		return err
	})
}
