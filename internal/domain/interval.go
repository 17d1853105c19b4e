package domain

import "time"

// Interval is a half-open time range [Start, End) on a single calendar.
type Interval struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// merely touch (one ends exactly when the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// FreeSlots sweeps a cursor across [windowStart, windowEnd) and emits every
// gap of at least minDuration between consecutive events. The events must be
// sorted ascending by start time and mutually non-overlapping; both are
// enforced at write time, so the result is safe to recompute on every call.
func FreeSlots(events []CalendarEvent, windowStart, windowEnd time.Time, minDuration time.Duration) []Interval {
	slots := make([]Interval, 0, len(events)+1)
	cursor := windowStart

	for _, ev := range events {
		if cursor.Before(ev.StartTime) && ev.StartTime.Sub(cursor) >= minDuration {
			slots = append(slots, Interval{Start: cursor, End: ev.StartTime})
		}
		if ev.EndTime.After(cursor) {
			cursor = ev.EndTime
		}
	}

	if cursor.Before(windowEnd) && windowEnd.Sub(cursor) >= minDuration {
		slots = append(slots, Interval{Start: cursor, End: windowEnd})
	}

	return slots
}
