package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"gopkg.in/yaml.v3"
)

type windowEntry struct {
	DayOfWeek string `yaml:"day_of_week"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

type policyFile struct {
	DurationMinutes int           `yaml:"duration_minutes"`
	TimeZone        string        `yaml:"time_zone"`
	WeeklyWindows   []windowEntry `yaml:"weekly_windows"`
}

type busyEntry struct {
	StartTime time.Time `yaml:"start_time"`
	EndTime   time.Time `yaml:"end_time"`
	Status    string    `yaml:"status"`
}

type intervalOut struct {
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

func readPolicy(r io.Reader) (availability.SchedulePolicy, error) {
	var pf policyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return availability.SchedulePolicy{}, fmt.Errorf("parse policy: %w", err)
	}

	p := availability.SchedulePolicy{DurationMinutes: pf.DurationMinutes, TimeZone: pf.TimeZone}
	for i, w := range pf.WeeklyWindows {
		day, err := availability.ParseWeekday(w.DayOfWeek)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("weekly_windows[%d]: %w", i, err)
		}
		start, err := availability.ParseTimeOfDay(w.StartTime)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("weekly_windows[%d]: %w", i, err)
		}
		end, err := availability.ParseTimeOfDay(w.EndTime)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("weekly_windows[%d]: %w", i, err)
		}
		p.Windows = append(p.Windows, availability.WeeklyWindow{DayOfWeek: day, Start: start, End: end})
	}
	return p, nil
}

func readBusy(r io.Reader) ([]availability.ScheduleSlot, error) {
	var entries []busyEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse busy slots: %w", err)
	}
	slots := make([]availability.ScheduleSlot, 0, len(entries))
	for i, e := range entries {
		if !e.StartTime.Before(e.EndTime) {
			return nil, fmt.Errorf("busy[%d]: start_time must be before end_time", i)
		}
		slots = append(slots, availability.ScheduleSlot{Start: e.StartTime, End: e.EndTime, Status: e.Status})
	}
	return slots, nil
}

func openFile(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// parseBound accepts RFC3339 or a bare date, which is taken as midnight in loc.
func parseBound(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (RFC3339 or YYYY-MM-DD expected)", raw)
	}
	return t, nil
}
