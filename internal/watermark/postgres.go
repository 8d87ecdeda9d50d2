package watermark

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

const createWatermarksTable = `CREATE TABLE IF NOT EXISTS sync_watermarks (
    stream          TEXT PRIMARY KEY,
    last_synced_end TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps watermarks in the sync_watermarks table, one row per stream.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the watermark table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createWatermarksTable)
	return err
}

// Load returns the stored watermarks. Connection failures are returned; rows holding
// unknown streams are ignored.
func (s *PostgresStore) Load(ctx context.Context) (State, error) {
	rows, err := s.pool.Query(ctx, `SELECT stream, last_synced_end FROM sync_watermarks`)
	if err != nil {
		return State{}, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	var state State
	for rows.Next() {
		var (
			stream string
			end    *time.Time
		)
		if err := rows.Scan(&stream, &end); err != nil {
			return State{}, fmt.Errorf("scan watermark: %w", err)
		}
		state.Set(domain.Stream(stream), end)
	}
	if err := rows.Err(); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save upserts both streams in one transaction. Stored values only ever move forward.
func (s *PostgresStore) Save(ctx context.Context, state State) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO sync_watermarks (stream, last_synced_end, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (stream) DO UPDATE
        SET last_synced_end = GREATEST(sync_watermarks.last_synced_end, EXCLUDED.last_synced_end),
            updated_at = NOW()`

	for _, stream := range domain.Streams {
		ts := state.Get(stream)
		if ts == nil {
			continue
		}
		if _, err = tx.Exec(ctx, upsert, string(stream), ceilSecond(*ts)); err != nil {
			return fmt.Errorf("upsert %s watermark: %w", stream, err)
		}
	}

	return tx.Commit(ctx)
}
