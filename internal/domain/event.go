// Package domain defines the event model shared by the sync engine, its sources and its sinks.
package domain

import "time"

// Stream names one independently watermarked category of upstream data.
type Stream string

const (
	StreamSleep    Stream = "sleep"
	StreamActivity Stream = "activity"
)

// Streams lists every stream in processing order. Sleep is handled before activity for each date.
var Streams = []Stream{StreamSleep, StreamActivity}

// Event is the uniform time-tracked record written to the downstream store.
type Event struct {
	Start      time.Time
	Duration   time.Duration
	Title      string
	Attributes map[string]any
}

// End returns the instant the event finishes.
func (e Event) End() time.Time {
	return e.Start.Add(e.Duration)
}

// SleepSegment is one stage interval of a night's sleep.
type SleepSegment struct {
	Start time.Time
	End   time.Time
	Stage SleepStage
}

// ActivitySegment is an all-day activity record reported by the tracker.
type ActivitySegment struct {
	Start           time.Time
	DurationMinutes int
	ActivityType    string
}

// End derives the finish time from the whole-minute duration.
func (a ActivitySegment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
