// Package normalize converts raw tracker records into domain events.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

// TimestampLayout is the tracker's naive GMT timestamp, always suffixed with a literal ".0".
const TimestampLayout = "2006-01-02T15:04:05"

const timestampSuffix = ".0"

const (
	defaultActivityType = "activity"
	unknownActivityType = "unknown"
)

var errDurationNegative = errors.New("duration must not be negative")

// ParseTimestamp parses a tracker timestamp such as "2024-01-09T23:00:00.0" as UTC.
func ParseTimestamp(field, value string) (time.Time, error) {
	trimmed, ok := strings.CutSuffix(value, timestampSuffix)
	if !ok {
		return time.Time{}, &domain.ParseError{Field: field, Value: value, Err: fmt.Errorf("missing %q suffix", timestampSuffix)}
	}
	ts, err := time.ParseInLocation(TimestampLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, &domain.ParseError{Field: field, Value: value, Err: err}
	}
	return ts, nil
}

// SleepSegment validates a raw sleep level and converts it into a domain segment.
func SleepSegment(raw SleepLevel) (domain.SleepSegment, error) {
	start, err := ParseTimestamp("startGMT", raw.StartGMT)
	if err != nil {
		return domain.SleepSegment{}, err
	}
	end, err := ParseTimestamp("endGMT", raw.EndGMT)
	if err != nil {
		return domain.SleepSegment{}, err
	}
	if end.Before(start) {
		return domain.SleepSegment{}, &domain.ParseError{Field: "endGMT", Value: raw.EndGMT, Err: errors.New("ends before it starts")}
	}

	if raw.ActivityLevel == nil {
		return domain.SleepSegment{}, &domain.ParseError{Field: "activityLevel", Value: "", Err: errors.New("missing")}
	}
	level := *raw.ActivityLevel
	if level != math.Trunc(level) {
		return domain.SleepSegment{}, &domain.ParseError{Field: "activityLevel", Value: fmt.Sprint(level), Err: errors.New("not an integer code")}
	}
	stage, err := domain.ParseSleepStage(int(level))
	if err != nil {
		return domain.SleepSegment{}, &domain.ParseError{Field: "activityLevel", Value: fmt.Sprint(level), Err: err}
	}

	return domain.SleepSegment{Start: start, End: end, Stage: stage}, nil
}

// Sleep normalizes one sleep level into an event titled "Sleep: <STAGE>".
func Sleep(raw SleepLevel) (domain.Event, error) {
	seg, err := SleepSegment(raw)
	if err != nil {
		return domain.Event{}, err
	}
	title := "Sleep: " + seg.Stage.String()
	return domain.Event{
		Start:      seg.Start,
		Duration:   seg.End.Sub(seg.Start),
		Title:      title,
		Attributes: map[string]any{"title": title},
	}, nil
}

// ActivitySegment converts a raw all-day record, applying defaults for missing fields.
func ActivitySegment(raw AllDayEvent) (domain.ActivitySegment, error) {
	start := time.Unix(0, 0).UTC()
	if raw.StartTimestampGMT != nil {
		parsed, err := ParseTimestamp("startTimestampGMT", *raw.StartTimestampGMT)
		if err != nil {
			return domain.ActivitySegment{}, err
		}
		start = parsed
	}

	minutes := 0
	if raw.Duration != nil {
		minutes = int(*raw.Duration)
	}
	if minutes < 0 {
		return domain.ActivitySegment{}, &domain.ParseError{Field: "duration", Value: fmt.Sprint(*raw.Duration), Err: errDurationNegative}
	}

	activityType := defaultActivityType
	if raw.ActivityType != nil {
		activityType = *raw.ActivityType
	}

	return domain.ActivitySegment{Start: start, DurationMinutes: minutes, ActivityType: activityType}, nil
}

// Activity normalizes one all-day record into an event titled "Activity: <Type>".
func Activity(raw AllDayEvent) (domain.Event, error) {
	seg, err := ActivitySegment(raw)
	if err != nil {
		return domain.Event{}, err
	}

	title := "Activity: " + TitleCase(seg.ActivityType)
	attrs := map[string]any{
		"title":            title,
		"duration_minutes": seg.DurationMinutes,
	}
	switch {
	case raw.ActivityType != nil:
		attrs["type"] = *raw.ActivityType
	case !raw.ActivityTypeNull:
		attrs["type"] = unknownActivityType
	}

	return domain.Event{
		Start:      seg.Start,
		Duration:   time.Duration(seg.DurationMinutes) * time.Minute,
		Title:      title,
		Attributes: attrs,
	}, nil
}
