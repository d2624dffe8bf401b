package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return NewFixedWindowLimiter(c), mr
}

func TestFixedWindowLimiter_RedisNil_Allows(t *testing.T) {
	l := NewFixedWindowLimiter(nil)

	d, err := l.AllowFixedWindow(context.Background(), "k", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Remaining)
}

func TestFixedWindowLimiter_LimitZero_Allows(t *testing.T) {
	l := NewFixedWindowLimiter(nil)

	d, _ := l.AllowFixedWindow(context.Background(), "k", 0, time.Minute)
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_BlocksAfterLimit(t *testing.T) {
	l, mr := setupLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.AllowFixedWindow(ctx, "rl:login:ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, i, d.Count)
	}

	d, err := l.AllowFixedWindow(ctx, "rl:login:ip:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// keys are independent
	d, err = l.AllowFixedWindow(ctx, "rl:login:ip:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.Greater(t, mr.TTL("rl:login:ip:1"), time.Duration(0))
}

func TestFixedWindowLimiter_WindowExpiryResets(t *testing.T) {
	l, mr := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.AllowFixedWindow(ctx, "k", 1, time.Second)
		require.NoError(t, err)
	}
	mr.FastForward(2 * time.Second)

	d, err := l.AllowFixedWindow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestFixedWindowLimiter_RedisDown_ReturnsError(t *testing.T) {
	l, mr := setupLimiter(t)
	mr.Close()

	_, err := l.AllowFixedWindow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
