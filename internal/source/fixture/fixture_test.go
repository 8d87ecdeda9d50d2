package fixture

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sleep/2024-01-10.json": {Data: []byte(`{"sleepLevels":[{"startGMT":"2024-01-09T23:00:00.0","endGMT":"2024-01-10T01:30:00.0","activityLevel":2}]}`)},
		"activities/2024-01-10.json": {Data: []byte(`[{"startTimestampGMT":"2024-01-10T06:00:00.0","duration":30,"activityType":"walking"}]`)},
		"activities/2024-01-11.json": {Data: []byte(`{not json`)},
	}
}

var jan10 = time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

func TestFetchSleepFromFixture(t *testing.T) {
	src := NewFS(testFS())
	require.NoError(t, src.Login(context.Background()))

	data, err := src.FetchSleep(context.Background(), jan10)
	require.NoError(t, err)
	require.Len(t, data.SleepLevels, 1)
	require.Equal(t, 2.0, *data.SleepLevels[0].ActivityLevel)
}

func TestFetchActivitiesFromFixture(t *testing.T) {
	events, err := NewFS(testFS()).FetchActivities(context.Background(), jan10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "walking", *events[0].ActivityType)
}

func TestMissingFixtureIsEmptyDay(t *testing.T) {
	src := NewFS(testFS())
	data, err := src.FetchSleep(context.Background(), jan10.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Empty(t, data.SleepLevels)

	events, err := src.FetchActivities(context.Background(), jan10.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestMalformedFixture(t *testing.T) {
	_, err := NewFS(testFS()).FetchActivities(context.Background(), jan10.AddDate(0, 0, 1))
	require.ErrorContains(t, err, "decode fixture activities/2024-01-11.json")
}

func TestNewReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	events, err := New(dir).FetchActivities(context.Background(), jan10)
	require.NoError(t, err)
	require.Empty(t, events)
}
