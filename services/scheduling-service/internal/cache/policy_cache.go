package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/carebook/services/scheduling-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sched:policy:"

// ErrMiss is returned by Get when no cached entry exists.
var ErrMiss = errors.New("policy cache miss")

// PolicyCache stores schedule policies as JSON in Redis. A nil client turns
// every call into a miss or a no-op.
type PolicyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPolicyCache(rdb *redis.Client, ttl time.Duration) *PolicyCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PolicyCache{rdb: rdb, ttl: ttl}
}

func Key(professionalID string) string {
	return keyPrefix + professionalID
}

func (c *PolicyCache) Get(ctx context.Context, professionalID string) (availability.SchedulePolicy, error) {
	if c == nil || c.rdb == nil {
		return availability.SchedulePolicy{}, ErrMiss
	}
	raw, err := c.rdb.Get(ctx, Key(professionalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return availability.SchedulePolicy{}, ErrMiss
	}
	if err != nil {
		return availability.SchedulePolicy{}, err
	}
	return decode(raw)
}

func (c *PolicyCache) Set(ctx context.Context, professionalID string, policy availability.SchedulePolicy) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := encode(policy)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(professionalID), raw, c.ttl).Err()
}

func (c *PolicyCache) Invalidate(ctx context.Context, professionalID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, Key(professionalID)).Err()
}

type cachedWindow struct {
	Day   string `json:"d"`
	Start int    `json:"s"`
	End   int    `json:"e"`
}

type cachedPolicy struct {
	DurationMinutes int            `json:"duration_minutes"`
	TimeZone        string         `json:"time_zone"`
	Windows         []cachedWindow `json:"windows"`
}

func encode(p availability.SchedulePolicy) ([]byte, error) {
	cp := cachedPolicy{DurationMinutes: p.DurationMinutes, TimeZone: p.TimeZone}
	for _, w := range p.Windows {
		cp.Windows = append(cp.Windows, cachedWindow{
			Day:   availability.WeekdayName(w.DayOfWeek),
			Start: w.Start.Minutes(),
			End:   w.End.Minutes(),
		})
	}
	return json.Marshal(cp)
}

func decode(raw []byte) (availability.SchedulePolicy, error) {
	var cp cachedPolicy
	if err := json.Unmarshal(raw, &cp); err != nil {
		return availability.SchedulePolicy{}, fmt.Errorf("decode cached policy: %w", err)
	}
	p := availability.SchedulePolicy{DurationMinutes: cp.DurationMinutes, TimeZone: cp.TimeZone}
	for _, w := range cp.Windows {
		wd, err := availability.ParseWeekday(w.Day)
		if err != nil {
			return availability.SchedulePolicy{}, fmt.Errorf("decode cached policy: %w", err)
		}
		p.Windows = append(p.Windows, availability.WeeklyWindow{
			DayOfWeek: wd,
			Start:     availability.TimeOfDay(w.Start),
			End:       availability.TimeOfDay(w.End),
		})
	}
	return p, nil
}
