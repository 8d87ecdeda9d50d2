//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/testsupport"
)

func TestRepositoryStoresEventsOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testsupport.StartPostgres(ctx, t))
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx), "schema creation is idempotent")

	require.NoError(t, repo.EnsureBucket(ctx, "garmin-health", "health"))
	require.ErrorIs(t, repo.EnsureBucket(ctx, "garmin-health", "health"), domain.ErrBucketExists)

	evt := domain.Event{
		Start:      time.Date(2024, time.January, 10, 6, 0, 0, 0, time.UTC),
		Duration:   45 * time.Minute,
		Title:      "Activity: Running",
		Attributes: map[string]any{"title": "Activity: Running", "type": "running", "duration_minutes": 45},
	}
	require.NoError(t, repo.InsertEvent(ctx, "garmin-health", evt))
	require.NoError(t, repo.InsertEvent(ctx, "garmin-health", evt))

	stored, err := listEvents(ctx, repo, "garmin-health")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "Activity: Running", stored[0].Title)
	require.True(t, stored[0].EndedAt.Equal(evt.End()))
	require.Equal(t, 2700.0, stored[0].DurationSeconds)
	require.Equal(t, "running", stored[0].Data["type"])

	require.NoError(t, truncate(ctx, repo))
	stored, err = listEvents(ctx, repo, "garmin-health")
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestRepositoryKeepsEventsSharingStartAndTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testsupport.StartPostgres(ctx, t))
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureBucket(ctx, "garmin-health", "health"))

	for _, minutes := range []int{10, 45} {
		evt := domain.Event{
			Start:      time.Unix(0, 0).UTC(),
			Duration:   time.Duration(minutes) * time.Minute,
			Title:      "Activity: Walking",
			Attributes: map[string]any{"title": "Activity: Walking", "type": "walking", "duration_minutes": minutes},
		}
		require.NoError(t, repo.InsertEvent(ctx, "garmin-health", evt))
	}

	stored, err := listEvents(ctx, repo, "garmin-health")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, 600.0, stored[0].DurationSeconds)
	require.Equal(t, 2700.0, stored[1].DurationSeconds)
}

func TestRepositoryRejectsUnknownBucket(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testsupport.StartPostgres(ctx, t))
	require.NoError(t, repo.EnsureSchema(ctx))

	err := repo.InsertEvent(ctx, "missing", domain.Event{Start: time.Unix(0, 0).UTC(), Title: "x"})
	require.Error(t, err)
}
