// Package slots enumerates bookable start times. Everything here is a pure
// function of its inputs: no I/O, no clock reads, no hidden state.
package slots

import (
	"time"

	"salonbook/internal/interval"
	"salonbook/internal/model"
)

// DefaultGranularity is the step between candidate start times.
const DefaultGranularity = 15 * time.Minute

// Input holds everything needed to list one staff member's slots.
type Input struct {
	Window      model.WorkingWindow
	Duration    time.Duration
	Granularity time.Duration
	Now         time.Time
	// Busy holds blocking appointments and active holds of the staff member.
	Busy []interval.Interval
}

// Candidate is one staff member's input in "any staff" mode.
type Candidate struct {
	StaffID string
	Window  model.WorkingWindow
	Busy    []interval.Interval
}

// Offer is a start time together with the staff member who would take it.
type Offer struct {
	Start   time.Time
	End     time.Time
	StaffID string
}

// Generate returns the ascending start times at which the service fits.
func Generate(in Input) []time.Time {
	if !in.Window.Available || in.Duration <= 0 {
		return nil
	}
	step := granularity(in.Granularity)

	windowEnd := in.Window.EndAt()
	var out []time.Time
	for t := in.Window.StartAt(); t.Before(windowEnd); t = t.Add(step) {
		if Fits(in.Window, t, in.Duration, in.Busy, in.Now) {
			out = append(out, t)
		}
	}
	return out
}

// GenerateAny lists start times for a pool of staff. A time is offered when at
// least one candidate can take it; the offer names the first such candidate in
// pool order.
func GenerateAny(candidates []Candidate, duration, step time.Duration, now time.Time) []Offer {
	if duration <= 0 {
		return nil
	}
	step = granularity(step)

	unionStart, unionEnd, ok := union(candidates)
	if !ok {
		return nil
	}

	var out []Offer
	for t := unionStart; t.Before(unionEnd); t = t.Add(step) {
		for _, c := range candidates {
			if Fits(c.Window, t, duration, c.Busy, now) {
				out = append(out, Offer{Start: t, End: t.Add(duration), StaffID: c.StaffID})
				break
			}
		}
	}
	return out
}

// Fits reports whether [start, start+duration) can be offered within window.
//
// A start at or before now is rejected. On today's date that removes elapsed
// times; on a future date nothing is affected.
func Fits(window model.WorkingWindow, start time.Time, duration time.Duration, busy []interval.Interval, now time.Time) bool {
	if !window.Available || duration <= 0 {
		return false
	}
	end := start.Add(duration)

	if start.Before(window.StartAt()) || end.After(window.EndAt()) {
		return false
	}
	if !start.After(now) {
		return false
	}

	slot := interval.Interval{Start: start, End: end}
	if interval.OverlapsAny(slot, window.Excluded) {
		return false
	}
	return !interval.OverlapsAny(slot, busy)
}

// OnGrid reports whether t is one of the candidate times stepped from origin.
func OnGrid(origin, t time.Time, step time.Duration) bool {
	if t.Before(origin) {
		return false
	}
	return t.Sub(origin)%granularity(step) == 0
}

// GridOrigin is the first candidate time GenerateAny would try: the earliest
// opening among available candidates.
func GridOrigin(candidates []Candidate) (time.Time, bool) {
	start, _, ok := union(candidates)
	return start, ok
}

func union(candidates []Candidate) (start, end time.Time, ok bool) {
	for _, c := range candidates {
		if !c.Window.Available {
			continue
		}
		s, e := c.Window.StartAt(), c.Window.EndAt()
		if !ok || s.Before(start) {
			start = s
		}
		if !ok || e.After(end) {
			end = e
		}
		ok = true
	}
	return start, end, ok
}

func granularity(step time.Duration) time.Duration {
	if step <= 0 {
		return DefaultGranularity
	}
	return step
}

// SlotInfo is a simplified representation for the request layer.
type SlotInfo struct {
	Start   string `json:"start"` // "10:00"
	End     string `json:"end"`   // "11:00"
	StaffID string `json:"staff_id,omitempty"`
}

// ToSlotInfo converts offers to SlotInfo.
func ToSlotInfo(offers []Offer) []SlotInfo {
	result := make([]SlotInfo, len(offers))
	for i, o := range offers {
		result[i] = SlotInfo{
			Start:   o.Start.Format("15:04"),
			End:     o.End.Format("15:04"),
			StaffID: o.StaffID,
		}
	}
	return result
}
