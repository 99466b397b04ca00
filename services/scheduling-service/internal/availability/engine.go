package availability

import (
	"fmt"
	"slices"
	"time"
)

// GenerateAvailableIntervals returns the bookable intervals of policy inside
// the half-open range [from, to) that do not collide with any existing slot.
//
// For every calendar day from from's date through to's date (inclusive), each
// weekly window matching that weekday is sliced into a grid of consecutive
// DurationMinutes-long candidates anchored at the window start. A trailing
// candidate that would run past the window end is dropped. Candidates that are
// not fully inside [from, to), or that overlap an existing slot, are skipped
// without shifting the grid. Results are ordered by day and, within a day, by
// start time; windows are never merged, so duplicate or overlapping windows
// yield repeated starts.
//
// Calendar days and window boundaries are taken in from's location; the caller
// localizes instants into the policy's time zone beforehand. An empty or
// inverted range yields no intervals and is not an error. A non-positive
// duration fails with ErrInvalidPolicy; a duration longer than a day fits no
// window and yields no intervals.
func GenerateAvailableIntervals(policy SchedulePolicy, existing []ScheduleSlot, from, to time.Time) ([]Interval, error) {
	if !to.After(from) {
		return nil, nil
	}
	if policy.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive (got %d)", ErrInvalidPolicy, policy.DurationMinutes)
	}
	// No window outlasts a day, and longer durations overflow time.Duration.
	if policy.DurationMinutes > minutesPerDay {
		return nil, nil
	}
	step := policy.Duration()
	query := Interval{Start: from, End: to}

	busy := make([]Interval, 0, len(existing))
	for _, s := range existing {
		b := Interval{Start: s.Start, End: s.End}
		if b.Overlaps(query) {
			busy = append(busy, b)
		}
	}

	loc := from.Location()
	first := midnight(from)
	last := midnight(to.In(loc))

	var out []Interval
	for i := 0; ; i++ {
		day := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, loc)
		if day.After(last) {
			break
		}
		dayStart := len(out)
		for _, w := range policy.windowsOn(day.Weekday()) {
			window := Interval{Start: w.Start.On(day), End: w.End.On(day)}
			if !window.Overlaps(query) {
				continue
			}
			for start := window.Start; !start.Add(step).After(window.End); start = start.Add(step) {
				candidate := Interval{Start: start, End: start.Add(step)}
				if candidate.Start.Before(from) || candidate.End.After(to) {
					continue
				}
				if overlapsAny(candidate, busy) {
					continue
				}
				out = append(out, candidate)
			}
		}
		slices.SortStableFunc(out[dayStart:], func(a, b Interval) int {
			return a.Start.Compare(b.Start)
		})
	}
	return out, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
