package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"staffing-gateway/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 15, 0, time.UTC)

func TestKey(t *testing.T) {
	assert.Equal(t, "leads|10.0.0.1", Key(" Leads ", "10.0.0.1"))
	assert.Equal(t, "_|_", Key("", ""))
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := fixedNow
	l.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "leads|a").Allowed)
	assert.True(t, l.Allow(ctx, "leads|a").Allowed)

	d := l.Allow(ctx, "leads|a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)

	// other keys have their own budget
	assert.True(t, l.Allow(ctx, "leads|b").Allowed)
	assert.True(t, l.Allow(ctx, "events|a").Allowed)

	now = now.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "leads|a").Allowed)
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	l := NewMemoryLimiter(0, time.Second)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(context.Background(), "k").Allowed)
	}
	var nilLimiter *MemoryLimiter
	assert.True(t, nilLimiter.Allow(context.Background(), "k").Allowed)
}

func TestMemoryLimiter_PrunesStaleWindows(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	now := fixedNow
	l.now = func() time.Time { return now }

	l.Allow(context.Background(), "a")
	l.Allow(context.Background(), "b")
	require.Len(t, l.counters, 2)

	now = now.Add(3 * time.Minute)
	l.Allow(context.Background(), "c")
	assert.Len(t, l.counters, 1)
}

func TestRedisLimiter_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, 3, time.Minute, logger.NewTestLogger(t))
	l.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(ctx, "technicians|10.0.0.9").Allowed, "request %d", i)
	}
	d := l.Allow(ctx, "technicians|10.0.0.9")
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)

	key := l.redisKey("technicians|10.0.0.9", fixedNow.Truncate(time.Minute))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// A second replica shares the same counters.
	other := NewRedisLimiter(client, 3, time.Minute, nil)
	other.now = l.now
	assert.False(t, other.Allow(ctx, "technicians|10.0.0.9").Allowed)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLimiter(client, 1, time.Minute, logger.NewTestLogger(t))
	l.now = func() time.Time { return fixedNow }
	key := l.redisKey("leads|a", fixedNow.Truncate(time.Minute))

	mock.ExpectIncr(key).SetErr(errors.New("connection reset"))

	assert.True(t, l.Allow(context.Background(), "leads|a").Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLimiter_SetsExpiryOnFirstHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLimiter(client, 1, time.Minute, nil)
	l.now = func() time.Time { return fixedNow }
	key := l.redisKey("leads|a", fixedNow.Truncate(time.Minute))

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectPExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)

	assert.True(t, l.Allow(context.Background(), "leads|a").Allowed)
	assert.False(t, l.Allow(context.Background(), "leads|a").Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
