// Package interval provides the half-open time range used by every conflict check.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned when start is not strictly before end.
var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New validates and builds an interval.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s >= %s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// FromDuration builds [start, start+d).
func FromDuration(start time.Time, d time.Duration) (Interval, error) {
	return New(start, start.Add(d))
}

// Overlaps reports whether a and b share any instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps is the method form of Overlaps.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// OverlapsAny reports whether iv overlaps at least one of others.
func OverlapsAny(iv Interval, others []Interval) bool {
	for _, o := range others {
		if Overlaps(iv, o) {
			return true
		}
	}
	return false
}

// Contains reports whether t falls inside [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}
