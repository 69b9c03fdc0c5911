// Package overlap implements the interval conflict predicate guarding every
// calendar mutation.  It is pure: callers fetch the spans for one
// (owner, property) pair from the store, inside whatever transaction scope
// they own, and ask whether a candidate interval collides with any of them.
package overlap

import "time"

// Span is an existing event's interval, reduced to what the detector needs.
type Span struct {
	ID    int64
	Begin time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals [aBegin, aEnd) and
// [bBegin, bEnd) intersect.  An event ending exactly when another begins
// does not overlap, so adjacent bookings are legal.
func Overlaps(aBegin, aEnd, bBegin, bEnd time.Time) bool {
	return aBegin.Before(bEnd) && bBegin.Before(aEnd)
}

// Conflicts reports whether the candidate interval [begin, end) overlaps any
// span.  The spans must already be scoped to a single (owner, property)
// pair; the predicate never filters by owner or property itself.  When
// excludeID is non-zero the span with that ID is skipped, which lets an
// update re-check an event against everything but itself.
func Conflicts(spans []Span, begin, end time.Time, excludeID int64) bool {
	for _, s := range spans {
		if excludeID != 0 && s.ID == excludeID {
			continue
		}
		if Overlaps(begin, end, s.Begin, s.End) {
			return true
		}
	}
	return false
}
