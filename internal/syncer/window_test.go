package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowSlidingDaysOldestFirst(t *testing.T) {
	now := time.Date(2024, time.January, 10, 15, 4, 5, 0, time.UTC)

	dates, err := Window(nil, 2, now)
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-08", "2024-01-09", "2024-01-10"}, formatDates(dates))
}

func TestWindowZeroDaysBackIsToday(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 30, 0, 0, time.UTC)
	dates, err := Window(nil, 0, now)
	require.NoError(t, err)
	require.Equal(t, []string{"2024-03-01"}, formatDates(dates))
}

func TestWindowUsesLocalCalendarDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC; the local date wins.
	now := time.Date(2024, time.January, 10, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	dates, err := Window(nil, 1, now)
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-09", "2024-01-10"}, formatDates(dates))
}

func TestWindowExplicitDate(t *testing.T) {
	date := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
	dates, err := Window(&date, 5, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"2023-12-31"}, formatDates(dates))
}

func TestWindowRejectsNegativeDaysBack(t *testing.T) {
	_, err := Window(nil, -1, time.Now())
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2024/02/29")
	require.Error(t, err)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "INIT", PhaseInit.String())
	require.Equal(t, "WATERMARK_RECONCILED", PhaseWatermarkReconciled.String())
	require.Equal(t, "UNKNOWN", Phase(42).String())
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(DateLayout))
	}
	return out
}
