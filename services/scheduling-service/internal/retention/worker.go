package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/carebook/libs/db"
)

// Worker trims bookkeeping tables that only matter for a while: published
// outbox rows, inbox dedupe entries and idempotency keys.
type Worker struct {
	pool     *db.Pool
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	lockKey  int64
	sweepers []sweeper
}

type Config struct {
	Interval       time.Duration
	OutboxMaxAge   time.Duration
	InboxMaxAge    time.Duration
	IdempotencyTTL time.Duration
	LockKey        int64
}

type sweeper struct {
	name   string
	maxAge time.Duration
	query  string
}

const defaultLockKey = 4242094

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.OutboxMaxAge <= 0 {
		c.OutboxMaxAge = 7 * 24 * time.Hour
	}
	if c.InboxMaxAge <= 0 {
		c.InboxMaxAge = 14 * 24 * time.Hour
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 24 * time.Hour
	}
	if c.LockKey == 0 {
		c.LockKey = defaultLockKey
	}
	return c
}

func NewWorker(pool *db.Pool, logger *slog.Logger, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		pool:    pool,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		lockKey: cfg.LockKey,
		sweepers: []sweeper{
			{name: "outbox_events", maxAge: cfg.OutboxMaxAge, query: `DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < $1`},
			{name: "inbox_events", maxAge: cfg.InboxMaxAge, query: `DELETE FROM inbox_events WHERE received_at < $1`},
			{name: "slot_idempotency_keys", maxAge: cfg.IdempotencyTTL, query: `DELETE FROM slot_idempotency_keys WHERE updated_at < $1`},
		},
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("retention sweep failed", "err", err)
			}
		}
	}
}

// sweep runs under a transaction-scoped advisory lock so only one replica
// deletes at a time.
func (w *Worker) sweep(ctx context.Context) error {
	return w.pool.InTx(ctx, func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, w.lockKey).Scan(&locked); err != nil {
			return err
		}
		if !locked {
			w.logger.Debug("retention sweep skipped; lock held elsewhere", "lock_key", w.lockKey)
			return nil
		}

		for _, s := range w.cutoffs() {
			tag, err := tx.Exec(ctx, s.query, s.cutoff)
			if err != nil {
				return err
			}
			if n := tag.RowsAffected(); n > 0 {
				w.logger.Info("retention purged rows", "table", s.name, "rows", n, "cutoff", s.cutoff.Format(time.RFC3339))
			}
		}
		return nil
	})
}

type plannedSweep struct {
	name   string
	query  string
	cutoff time.Time
}

func (w *Worker) cutoffs() []plannedSweep {
	now := w.now().UTC()
	out := make([]plannedSweep, 0, len(w.sweepers))
	for _, s := range w.sweepers {
		out = append(out, plannedSweep{name: s.name, query: s.query, cutoff: now.Add(-s.maxAge)})
	}
	return out
}
