package syncer

import (
	"errors"
	"time"
)

// DateLayout is the calendar-date format used on the command line and by upstream requests.
const DateLayout = "2006-01-02"

// ErrInvalidWindow is returned for a negative days-back value.
var ErrInvalidWindow = errors.New("days back must be >= 0")

// CalendarDate strips the clock from t, keeping the date as seen in t's location.
// The result is midnight UTC of that date.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// Window returns the dates to sync, oldest first. With an explicit date only that date is
// returned; otherwise daysBack+1 consecutive days ending at today's date.
func Window(date *time.Time, daysBack int, now time.Time) ([]time.Time, error) {
	if date != nil {
		return []time.Time{CalendarDate(*date)}, nil
	}
	if daysBack < 0 {
		return nil, ErrInvalidWindow
	}

	today := CalendarDate(now)
	dates := make([]time.Time, 0, daysBack+1)
	for offset := daysBack; offset >= 0; offset-- {
		dates = append(dates, today.AddDate(0, 0, -offset))
	}
	return dates, nil
}
