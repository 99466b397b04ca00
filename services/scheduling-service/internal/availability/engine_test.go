package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// 2026-01-05 is a Monday.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func mondayPolicy(startH, startM, endH, endM, duration int) SchedulePolicy {
	return SchedulePolicy{
		DurationMinutes: duration,
		TimeZone:        "UTC",
		Windows: []WeeklyWindow{
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(startH, startM), End: NewTimeOfDay(endH, endM)},
		},
	}
}

func assertIntervals(t *testing.T, got []Interval, want ...Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: expected %s-%s, got %s-%s", i,
				want[i].Start.Format(time.RFC3339), want[i].End.Format(time.RFC3339),
				got[i].Start.Format(time.RFC3339), got[i].End.Format(time.RFC3339))
		}
	}
}

func iv(day time.Time, h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(day, h1, m1), End: at(day, h2, m2)}
}

func TestGenerate_FullMondayWindow(t *testing.T) {
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), nil, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got,
		iv(monday, 8, 0, 8, 30),
		iv(monday, 8, 30, 9, 0),
		iv(monday, 9, 0, 9, 30),
		iv(monday, 9, 30, 10, 0),
	)
}

func TestGenerate_ExistingSlotBlocksCandidate(t *testing.T) {
	existing := []ScheduleSlot{{ID: "s1", Start: at(monday, 8, 30), End: at(monday, 9, 0), Status: SlotStatusBooked}}
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), existing, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got,
		iv(monday, 8, 0, 8, 30),
		iv(monday, 9, 0, 9, 30),
		iv(monday, 9, 30, 10, 0),
	)
}

func TestGenerate_RangeStartKeepsGridAnchoredAtWindowStart(t *testing.T) {
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), nil, at(monday, 9, 0), monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got,
		iv(monday, 9, 0, 9, 30),
		iv(monday, 9, 30, 10, 0),
	)
}

func TestGenerate_MisalignedRangeStartDoesNotShiftGrid(t *testing.T) {
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), nil, at(monday, 8, 10), monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 08:00-08:30 straddles from and is not offered; no 08:10 slot is invented.
	assertIntervals(t, got,
		iv(monday, 8, 30, 9, 0),
		iv(monday, 9, 0, 9, 30),
		iv(monday, 9, 30, 10, 0),
	)
}

func TestGenerate_TrailingPartialSlotDropped(t *testing.T) {
	got, err := GenerateAvailableIntervals(mondayPolicy(9, 0, 9, 50, 30), nil, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got, iv(monday, 9, 0, 9, 30))
}

func TestGenerate_EmptyOrInvertedRange(t *testing.T) {
	p := mondayPolicy(8, 0, 10, 0, 30)
	for _, tc := range []struct {
		name     string
		from, to time.Time
	}{
		{"equal", at(monday, 9, 0), at(monday, 9, 0)},
		{"inverted", at(monday, 10, 0), at(monday, 8, 0)},
	} {
		got, err := GenerateAvailableIntervals(p, nil, tc.from, tc.to)
		if err != nil || len(got) != 0 {
			t.Fatalf("%s: expected empty result, got %v (%v)", tc.name, got, err)
		}
	}
}

func TestGenerate_EmptyRangeCheckedBeforePolicy(t *testing.T) {
	got, err := GenerateAvailableIntervals(SchedulePolicy{DurationMinutes: 0}, nil, at(monday, 10, 0), at(monday, 8, 0))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result without error, got %v (%v)", got, err)
	}
}

func TestGenerate_NonPositiveDurationFails(t *testing.T) {
	for _, d := range []int{0, -15} {
		p := mondayPolicy(8, 0, 10, 0, d)
		got, err := GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 1))
		if !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("duration %d: expected ErrInvalidPolicy, got %v", d, err)
		}
		if got != nil {
			t.Fatalf("duration %d: expected no partial result, got %v", d, got)
		}
	}
}

func TestGenerate_DurationLongerThanADay(t *testing.T) {
	for _, d := range []int{24*60 + 1, 1 << 40, 1 << 58} {
		done := make(chan []Interval, 1)
		go func(d int) {
			got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, d), nil, monday, monday.AddDate(0, 0, 1))
			if err != nil {
				t.Errorf("duration %d: unexpected error: %v", d, err)
			}
			done <- got
		}(d)
		select {
		case got := <-done:
			if len(got) != 0 {
				t.Fatalf("duration %d: expected no intervals, got %v", d, got)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("duration %d: generation did not return", d)
		}
	}
}

func TestGenerate_WholeDaySlot(t *testing.T) {
	p := SchedulePolicy{DurationMinutes: 24 * 60, Windows: []WeeklyWindow{
		{DayOfWeek: time.Monday, Start: NewTimeOfDay(0, 0), End: NewTimeOfDay(24, 0)},
	}}
	got, err := GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got, Interval{Start: monday, End: monday.AddDate(0, 0, 1)})
}

func TestGenerate_NoWindowsMeansNoAvailability(t *testing.T) {
	got, err := GenerateAvailableIntervals(SchedulePolicy{DurationMinutes: 30}, nil, monday, monday.AddDate(0, 0, 7))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v (%v)", got, err)
	}
}

func TestGenerate_MalformedWindowYieldsNothing(t *testing.T) {
	p := SchedulePolicy{DurationMinutes: 30, Windows: []WeeklyWindow{
		{DayOfWeek: time.Monday, Start: NewTimeOfDay(10, 0), End: NewTimeOfDay(8, 0)},
	}}
	got, err := GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 1))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v (%v)", got, err)
	}
}

func TestGenerate_ToDateIsScannedEvenThoughExclusive(t *testing.T) {
	// Range ends Monday 09:00: Monday's 08:00 window still contributes.
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), nil, monday.AddDate(0, 0, -1), at(monday, 9, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got,
		iv(monday, 8, 0, 8, 30),
		iv(monday, 8, 30, 9, 0),
	)
}

func TestGenerate_MultipleWindowsAndDaysInOrder(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	p := SchedulePolicy{
		DurationMinutes: 60,
		Windows: []WeeklyWindow{
			{DayOfWeek: time.Tuesday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(10, 0)},
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(14, 0), End: NewTimeOfDay(16, 0)},
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 0)},
		},
	}
	got, err := GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Policy order of windows does not leak into the output order.
	assertIntervals(t, got,
		iv(monday, 8, 0, 9, 0),
		iv(monday, 14, 0, 15, 0),
		iv(monday, 15, 0, 16, 0),
		iv(tuesday, 9, 0, 10, 0),
	)
}

func TestGenerate_AdjacentAndDuplicateWindowsAreIndependent(t *testing.T) {
	p := SchedulePolicy{
		DurationMinutes: 45,
		Windows: []WeeklyWindow{
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 0)},
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(10, 0)},
		},
	}
	got, err := GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Merged, 08:00-10:00 would give 08:00, 08:45; unmerged each window fits one slot.
	assertIntervals(t, got,
		iv(monday, 8, 0, 8, 45),
		iv(monday, 9, 0, 9, 45),
	)

	p.Windows = append(p.Windows, p.Windows[0])
	got, err = GenerateAvailableIntervals(p, nil, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || !got[0].Start.Equal(at(monday, 8, 0)) || !got[1].Start.Equal(at(monday, 8, 0)) {
		t.Fatalf("duplicate window should contribute independently, got %v", got)
	}
}

func TestGenerate_TouchingSlotDoesNotBlock(t *testing.T) {
	existing := []ScheduleSlot{
		{Start: at(monday, 7, 0), End: at(monday, 8, 0)},
		{Start: at(monday, 10, 0), End: at(monday, 11, 0)},
	}
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 60), existing, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got, iv(monday, 8, 0, 9, 0), iv(monday, 9, 0, 10, 0))
}

func TestGenerate_SlotStatusIsIgnored(t *testing.T) {
	existing := []ScheduleSlot{{Start: at(monday, 8, 15), End: at(monday, 8, 45), Status: SlotStatusCancelled}}
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 10, 0, 30), existing, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got, iv(monday, 9, 0, 9, 30), iv(monday, 9, 30, 10, 0))
}

func TestGenerate_PropertiesOverAWeek(t *testing.T) {
	p := SchedulePolicy{
		DurationMinutes: 20,
		Windows: []WeeklyWindow{
			{DayOfWeek: time.Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 5)},
			{DayOfWeek: time.Wednesday, Start: NewTimeOfDay(13, 10), End: NewTimeOfDay(17, 0)},
			{DayOfWeek: time.Friday, Start: NewTimeOfDay(7, 30), End: NewTimeOfDay(9, 0)},
		},
	}
	existing := []ScheduleSlot{
		{Start: at(monday, 9, 5), End: at(monday, 9, 50)},
		{Start: at(monday.AddDate(0, 0, 2), 14, 0), End: at(monday.AddDate(0, 0, 2), 14, 1)},
	}
	from := at(monday, 8, 30)
	to := at(monday.AddDate(0, 0, 4), 8, 40)

	got, err := GenerateAvailableIntervals(p, existing, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected some availability")
	}

	step := 20 * time.Minute
	for i, r := range got {
		if r.End.Sub(r.Start) != step {
			t.Fatalf("interval %d has length %s", i, r.End.Sub(r.Start))
		}
		if r.Start.Before(from) || r.End.After(to) {
			t.Fatalf("interval %d outside range: %v", i, r)
		}
		if i > 0 && r.Start.Before(got[i-1].Start) {
			t.Fatalf("interval %d out of order", i)
		}
		for _, s := range existing {
			if r.Overlaps(Interval{Start: s.Start, End: s.End}) {
				t.Fatalf("interval %d overlaps existing slot %v", i, s)
			}
		}
		var anchored bool
		for _, w := range p.Windows {
			if w.DayOfWeek != r.Start.Weekday() {
				continue
			}
			ws, we := w.Start.On(r.Start), w.End.On(r.Start)
			if !r.Start.Before(ws) && !r.End.After(we) && r.Start.Sub(ws)%step == 0 {
				anchored = true
			}
		}
		if !anchored {
			t.Fatalf("interval %d is not on a window grid: %v", i, r)
		}
	}

	again, err := GenerateAvailableIntervals(p, existing, from, to)
	if err != nil || !reflect.DeepEqual(got, again) {
		t.Fatalf("expected identical result on repeat call")
	}
}

func TestGenerate_UsesLocationOfFrom(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dayNY := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	got, err := GenerateAvailableIntervals(mondayPolicy(8, 0, 9, 0, 60), nil, dayNY, dayNY.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntervals(t, got, iv(dayNY, 8, 0, 9, 0))
	if got[0].Start.UTC().Hour() != 13 {
		t.Fatalf("expected 13:00 UTC, got %s", got[0].Start.UTC())
	}
}
