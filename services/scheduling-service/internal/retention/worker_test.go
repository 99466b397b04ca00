package retention

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Interval != 10*time.Minute || cfg.IdempotencyTTL != 24*time.Hour || cfg.LockKey != defaultLockKey {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	cfg = Config{Interval: time.Second, LockKey: 7}.withDefaults()
	if cfg.Interval != time.Second || cfg.LockKey != 7 {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestCutoffs(t *testing.T) {
	w := NewWorker(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		OutboxMaxAge:   48 * time.Hour,
		InboxMaxAge:    72 * time.Hour,
		IdempotencyTTL: time.Hour,
	})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	got := map[string]time.Time{}
	for _, s := range w.cutoffs() {
		got[s.name] = s.cutoff
	}
	if !got["outbox_events"].Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("outbox cutoff %s", got["outbox_events"])
	}
	if !got["inbox_events"].Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("inbox cutoff %s", got["inbox_events"])
	}
	if !got["slot_idempotency_keys"].Equal(now.Add(-time.Hour)) {
		t.Fatalf("idempotency cutoff %s", got["slot_idempotency_keys"])
	}
}
