package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter whose counters live in Redis, so
// every scheduling-service replica draws from the same budget. Each window
// gets its own key, which expires shortly after the window closes.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Second {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, now: time.Now}
}

// Middleware rejects callers over budget with 429 and a Retry-After hint.
// When Redis is unreachable, failOpen lets the request through; otherwise it
// is answered with 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, reset := rl.bucket(clientKey(r))
			count, err := rl.incr(r.Context(), key)
			if err != nil {
				if logger != nil {
					logger.Warn("redis rate limiter error", "err", err)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}

			remaining := int64(rl.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(rl.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bucket names the counter for client's current window and reports how long
// until that window closes.
func (rl *RedisRateLimiter) bucket(client string) (string, time.Duration) {
	now := rl.now()
	start := now.Truncate(rl.window)
	key := rl.prefix + ":" + client + ":" + strconv.FormatInt(start.Unix(), 10)
	return key, start.Add(rl.window).Sub(now)
}

func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int64, error) {
	var count *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, 2*rl.window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count.Val(), nil
}
