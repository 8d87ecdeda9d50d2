// Package watermark persists the latest synced event end per stream.
package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

// TimeLayout is the serialized watermark format. Watermarks carry whole seconds only.
const TimeLayout = "2006-01-02T15:04:05Z"

// Store loads and saves watermark state.
//
// Load must return the fresh (all-absent) state when the persisted record is missing or
// corrupt; corruption is never reported to the caller. Save must replace the record atomically.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// State holds one optional watermark per stream. A nil watermark means the stream was never synced.
type State struct {
	Sleep    *time.Time
	Activity *time.Time
}

// Get returns the watermark for stream.
func (s State) Get(stream domain.Stream) *time.Time {
	switch stream {
	case domain.StreamSleep:
		return s.Sleep
	case domain.StreamActivity:
		return s.Activity
	default:
		return nil
	}
}

// Set replaces the watermark for stream, normalized to whole UTC seconds.
func (s *State) Set(stream domain.Stream, ts *time.Time) {
	if ts != nil {
		v := ceilSecond(*ts)
		ts = &v
	}
	switch stream {
	case domain.StreamSleep:
		s.Sleep = ts
	case domain.StreamActivity:
		s.Activity = ts
	}
}

type stateFile struct {
	Sleep    *string `json:"sleep"`
	Activity *string `json:"activity"`
}

// MarshalJSON writes {"sleep": "...Z" | null, "activity": "...Z" | null}.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateFile{
		Sleep:    formatTime(s.Sleep),
		Activity: formatTime(s.Activity),
	})
}

// UnmarshalJSON rejects timestamps that do not match TimeLayout.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sleep, err := parseTime("sleep", raw.Sleep)
	if err != nil {
		return err
	}
	activity, err := parseTime("activity", raw.Activity)
	if err != nil {
		return err
	}
	*s = State{Sleep: sleep, Activity: activity}
	return nil
}

// ceilSecond rounds up so a stored watermark is never earlier than the event end it records.
func ceilSecond(ts time.Time) time.Time {
	ts = ts.UTC()
	whole := ts.Truncate(time.Second)
	if whole.Before(ts) {
		whole = whole.Add(time.Second)
	}
	return whole
}

func formatTime(ts *time.Time) *string {
	if ts == nil {
		return nil
	}
	v := ceilSecond(*ts).Format(TimeLayout)
	return &v
}

func parseTime(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	ts, err := time.ParseInLocation(TimeLayout, *value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &ts, nil
}
