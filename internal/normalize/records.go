package normalize

import (
	"bytes"
	"encoding/json"
)

// SleepData is the daily sleep payload returned by the tracker.
type SleepData struct {
	SleepLevels []SleepLevel `json:"sleepLevels"`
}

// SleepLevel is one raw sleep-stage interval. The level arrives as a JSON number
// that is integral in practice (for example 1.0).
type SleepLevel struct {
	StartGMT      string   `json:"startGMT"`
	EndGMT        string   `json:"endGMT"`
	ActivityLevel *float64 `json:"activityLevel"`
}

// AllDayEvent is a raw all-day activity record. Every field is optional and a JSON null
// decodes as absent. ActivityTypeNull records an activityType that was present but null,
// which drops the type attribute instead of defaulting it.
type AllDayEvent struct {
	StartTimestampGMT *string  `json:"startTimestampGMT,omitempty"`
	EndTimestampGMT   *string  `json:"endTimestampGMT,omitempty"`
	Duration          *float64 `json:"duration,omitempty"` // minutes
	ActivityType      *string  `json:"activityType,omitempty"`
	ActivityTypeNull  bool     `json:"-"`
}

// UnmarshalJSON decodes the record and notes a null activityType.
func (e *AllDayEvent) UnmarshalJSON(data []byte) error {
	type plain AllDayEvent
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["activityType"]
	decoded.ActivityTypeNull = ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	*e = AllDayEvent(decoded)
	return nil
}
