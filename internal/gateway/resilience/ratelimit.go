// Package resilience holds the guards that run around the upstream call:
// a fixed-window rate limiter per resource and client, and a circuit
// breaker per resource.
package resilience

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"staffing-gateway/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	defaultWindow    = time.Minute
	redisKeyPrefix   = "gateway:ratelimit:"
	redisCallTimeout = 250 * time.Millisecond
)

// Decision is the limiter's answer for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// Key builds the limiter key for a resource and client address.
func Key(resource, client string) string {
	r := strings.TrimSpace(strings.ToLower(resource))
	if r == "" {
		r = "_"
	}
	c := strings.TrimSpace(client)
	if c == "" {
		c = "_"
	}
	return r + "|" + c
}

func windowBounds(now time.Time, window time.Duration) (time.Time, time.Duration) {
	start := now.UTC().Truncate(window)
	return start, start.Add(window).Sub(now.UTC())
}

type counter struct {
	windowStart time.Time
	count       int
}

// MemoryLimiter keeps counters in process. Suitable for a single replica.
type MemoryLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	lastPruned time.Time
	counters   map[string]counter
	now        func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]counter, 128),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	if l == nil || l.limit <= 0 || key == "" {
		return Decision{Allowed: true}
	}
	start, remaining := windowBounds(l.now(), l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(start)

	c := l.counters[key]
	if !c.windowStart.Equal(start) {
		c = counter{windowStart: start}
	}
	if c.count >= l.limit {
		l.counters[key] = c
		return Decision{Allowed: false, RetryAfter: remaining}
	}
	c.count++
	l.counters[key] = c
	return Decision{Allowed: true}
}

func (l *MemoryLimiter) pruneLocked(current time.Time) {
	if !l.lastPruned.IsZero() && current.Sub(l.lastPruned) < l.window {
		return
	}
	cutoff := current.Add(-l.window)
	for key, c := range l.counters {
		if c.windowStart.Before(cutoff) {
			delete(l.counters, key)
		}
	}
	l.lastPruned = current
}

// RedisLimiter shares counters between replicas. Each window is a separate
// key so INCR followed by PEXPIRE on the first hit is enough. Redis errors
// let the request through.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	log    logger.Logger
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration, log logger.Logger) *RedisLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisLimiter{client: client, limit: limit, window: window, log: log, now: time.Now}
}

func (l *RedisLimiter) redisKey(key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", redisKeyPrefix, key, start.UnixMilli())
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if l == nil || l.limit <= 0 || key == "" {
		return Decision{Allowed: true}
	}
	start, remaining := windowBounds(l.now(), l.window)
	rkey := l.redisKey(key, start)

	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	count, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		l.log.Warn("Rate limit counter unavailable, allowing request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return Decision{Allowed: true}
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, rkey, l.window).Err(); err != nil {
			l.log.Warn("Failed to set rate limit window expiry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	if count > int64(l.limit) {
		return Decision{Allowed: false, RetryAfter: remaining}
	}
	return Decision{Allowed: true}
}
