package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_Window(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	l := NewRedisLimiter(client, "throttle:", 3, 15*time.Minute)

	for i := 1; i <= 3; i++ {
		allowed, _, err := l.Allow(ctx, "login:tess@example.com")
		require.NoError(t, err)
		require.True(t, allowed, "attempt %d", i)
	}

	allowed, retryAfter, err := l.Allow(ctx, "login:tess@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.InDelta(t, (15 * time.Minute).Seconds(), retryAfter.Seconds(), 1)

	// other keys are counted separately
	allowed, _, err = l.Allow(ctx, "login:other@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.True(t, mr.Exists("throttle:login:tess@example.com"))

	mr.FastForward(15*time.Minute + time.Second)
	allowed, _, err = l.Allow(ctx, "login:tess@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	l := NewRedisLimiter(client, "throttle:", 1, time.Minute)

	allowed, _, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, l.Reset(ctx, "k"))

	allowed, _, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLimiter(client, "throttle:", 1, time.Minute)

	mr.Close()
	_, _, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, errRedisUnavailable)
}

func TestNewRedisClient(t *testing.T) {
	mr, _ := newTestRedis(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
