//go:build integration

package watermark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndreyKarmanov/aw-garmin/internal/testsupport"
)

func TestPostgresStoreRoundTripAndMonotonic(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation must be idempotent")

	fresh, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, State{}, fresh)

	sleepEnd := time.Date(2024, time.January, 10, 1, 30, 0, 0, time.UTC)
	activityEnd := time.Date(2024, time.January, 10, 7, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, State{Sleep: &sleepEnd, Activity: &activityEnd}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, sleepEnd.Equal(*loaded.Sleep))
	require.True(t, activityEnd.Equal(*loaded.Activity))

	earlier := sleepEnd.Add(-time.Hour)
	require.NoError(t, store.Save(ctx, State{Sleep: &earlier}))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.True(t, sleepEnd.Equal(*loaded.Sleep), "stored watermark must never move backwards")
	require.True(t, activityEnd.Equal(*loaded.Activity), "absent stream keeps its stored watermark")
}
