package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPolicy  = errors.New("invalid schedule policy")
	ErrInvalidWindow  = errors.New("invalid weekly window")
	ErrUnknownWeekday = errors.New("unknown day of week")
)

var weekdayByName = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekday maps the symbolic names used by the API and the database
// ("MONDAY", case-insensitive) to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}

func WeekdayName(wd time.Weekday) string {
	return strings.ToUpper(wd.String())
}

// TimeOfDay is a wall-clock offset from midnight with minute precision.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds must be zero).
// "24:00" is accepted as the end of the day.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("seconds are not supported in %q", raw)
	}
	t := NewTimeOfDay(h, m)
	if t > minutesPerDay {
		return 0, fmt.Errorf("time of day %q is past midnight", raw)
	}
	return t, nil
}

func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On places the wall-clock time on the calendar day of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, int(t), 0, 0, d.Location())
}

// WeeklyWindow is a recurring time-of-day range on one weekday. Windows never
// span midnight.
type WeeklyWindow struct {
	DayOfWeek time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
}

func NewWeeklyWindow(day time.Weekday, start, end TimeOfDay) (WeeklyWindow, error) {
	w := WeeklyWindow{DayOfWeek: day, Start: start, End: end}
	if err := w.Validate(); err != nil {
		return WeeklyWindow{}, err
	}
	return w, nil
}

func (w WeeklyWindow) Validate() error {
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day %d", ErrUnknownWeekday, int(w.DayOfWeek))
	}
	if w.Start < 0 || w.End > minutesPerDay {
		return fmt.Errorf("%w: %s-%s outside of a day", ErrInvalidWindow, w.Start, w.End)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// SchedulePolicy is a professional's availability template.
type SchedulePolicy struct {
	DurationMinutes int
	TimeZone        string
	Windows         []WeeklyWindow
}

func (p SchedulePolicy) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Validate checks everything a stored policy must satisfy. The engine itself
// only insists on a positive duration.
func (p SchedulePolicy) Validate() error {
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive (got %d)", ErrInvalidPolicy, p.DurationMinutes)
	}
	if p.DurationMinutes > minutesPerDay {
		return fmt.Errorf("%w: duration_minutes must fit in a day (got %d)", ErrInvalidPolicy, p.DurationMinutes)
	}
	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		return fmt.Errorf("%w: unknown time zone %q", ErrInvalidPolicy, p.TimeZone)
	}
	for _, w := range p.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves TimeZone, falling back to UTC for empty or unknown zones.
func (p SchedulePolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p SchedulePolicy) windowsOn(day time.Weekday) []WeeklyWindow {
	var out []WeeklyWindow
	for _, w := range p.Windows {
		if w.DayOfWeek == day {
			out = append(out, w)
		}
	}
	return out
}

// Slot statuses as written by the booking subsystem. The engine treats every
// status as occupying time.
const (
	SlotStatusBooked    = "booked"
	SlotStatusBlocked   = "blocked"
	SlotStatusCancelled = "cancelled"
)

// ScheduleSlot is an already scheduled interval for a professional.
type ScheduleSlot struct {
	ID     string
	Start  time.Time
	End    time.Time
	Status string
}

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}
