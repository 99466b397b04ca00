package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
)

func TestEncodeDecodeKeepsWindowOrder(t *testing.T) {
	in := availability.SchedulePolicy{
		DurationMinutes: 15,
		TimeZone:        "Europe/Berlin",
		Windows: []availability.WeeklyWindow{
			{DayOfWeek: time.Friday, Start: availability.NewTimeOfDay(13, 0), End: availability.NewTimeOfDay(17, 0)},
			{DayOfWeek: time.Monday, Start: availability.NewTimeOfDay(8, 0), End: availability.NewTimeOfDay(12, 0)},
		},
	}
	raw, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DurationMinutes != 15 || out.TimeZone != "Europe/Berlin" || len(out.Windows) != 2 {
		t.Fatalf("unexpected policy: %+v", out)
	}
	if out.Windows[0].DayOfWeek != time.Friday || out.Windows[1].Start != availability.NewTimeOfDay(8, 0) {
		t.Fatalf("window order or content changed: %+v", out.Windows)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decode([]byte(`{"windows":[{"d":"NOPE"}]}`)); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
	if _, err := decode([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated json")
	}
}

func TestNilClientIsAlwaysAMiss(t *testing.T) {
	c := NewPolicyCache(nil, 0)
	if _, err := c.Get(context.Background(), "p1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(context.Background(), "p1", availability.SchedulePolicy{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Invalidate(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Key("p1") != "sched:policy:p1" {
		t.Fatalf("unexpected key %q", Key("p1"))
	}
}
