// Package dedup decides which normalized events are new relative to a stream watermark.
//
// Deduplication is purely by end time: an event is new only when it ends strictly after
// the watermark. Records with different content that end at or before the watermark are
// skipped as already synced.
package dedup

import (
	"time"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

// FilterNew returns the events ending strictly after watermark, in input order, together with
// the latest end among them. A nil watermark lets every event through. The returned maximum is
// nil when no event is kept.
func FilterNew(events []domain.Event, watermark *time.Time) ([]domain.Event, *time.Time) {
	kept := make([]domain.Event, 0, len(events))
	var maxEnd *time.Time

	for _, evt := range events {
		end := evt.End()
		if watermark != nil && !end.After(*watermark) {
			continue
		}
		kept = append(kept, evt)
		if maxEnd == nil || end.After(*maxEnd) {
			maxEnd = &end
		}
	}

	return kept, maxEnd
}

// Later returns whichever of a and b is later, treating nil as "never".
func Later(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
