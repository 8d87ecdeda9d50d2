// Package events defines the payloads published when synced events leave the process.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

// Version of the EventSynced payload.
const Version = "1"

// EventSynced is emitted for every event delivered to a bucket.
type EventSynced struct {
	EventID         string         `json:"event_id"`
	Bucket          string         `json:"bucket"`
	Title           string         `json:"title"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Data            map[string]any `json:"data"`
	Source          string         `json:"source"`
	Version         string         `json:"version"`
}

// EventSyncedSchema is the JSON Schema registered for EventSynced payloads.
const EventSyncedSchema = `{
  "type": "object",
  "title": "EventSynced",
  "properties": {
    "event_id": {"type": "string"},
    "bucket": {"type": "string"},
    "title": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "ended_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "number"},
    "data": {"type": "object"},
    "source": {"type": "string"},
    "version": {"type": "string"}
  },
  "required": ["event_id", "bucket", "title", "started_at", "ended_at", "duration_seconds", "data", "source", "version"],
  "additionalProperties": false
}`

// eventNamespace seeds deterministic event IDs so re-delivered events keep their identity.
var eventNamespace = uuid.MustParse("6f1c7a52-3f0e-4a8e-9d0b-2b6f4c1e9a10")

// ID derives a stable identifier from the bucket, interval, title and attributes of evt.
// Attributes are hashed in encoding/json form, which sorts map keys.
func ID(bucket string, evt domain.Event) uuid.UUID {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		attrs = []byte(fmt.Sprint(evt.Attributes))
	}
	key := strings.Join([]string{
		bucket,
		evt.Start.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(int64(evt.Duration), 10),
		evt.Title,
		string(attrs),
	}, "|")
	return uuid.NewSHA1(eventNamespace, []byte(key))
}
