package bucket

import (
	"iter"
	"time"
)

// TruncateHour returns the start of t's hour in loc
func TruncateHour(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// ExpandHours yields the start of every local hour touched by [start, end).
// The start hour is always yielded, so zero-length entries produce one hour.
func ExpandHours(start, end time.Time, loc *time.Location) iter.Seq[time.Time] {
	if loc == nil {
		loc = time.Local
	}
	first := TruncateHour(start, loc)
	last := first
	if end.After(start) {
		last = TruncateHour(end.Add(-time.Nanosecond), loc)
	}

	return func(yield func(time.Time) bool) {
		for h := first; !h.After(last); h = h.Add(time.Hour) {
			if !yield(h.In(loc)) {
				return
			}
		}
	}
}
