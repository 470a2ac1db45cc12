package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ml_system/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AdmitsUpToLimit(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(20, time.Minute)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be admitted", i+1)
	}
	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "21st request within the window must be throttled")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "alice")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "alice")
	assert.False(t, ok)

	// A different user has its own window.
	ok, _ = l.Allow(ctx, "bob")
	assert.True(t, ok)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "alice")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "alice")
	assert.False(t, ok)

	time.Sleep(60 * time.Millisecond)

	// Old timestamps fell out of the window.
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
}

func TestMemoryLimiter_ThrottledRequestNotRecorded(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(3, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ctx, "alice")
		require.True(t, ok)
	}
	// Hammering while throttled must not extend the lockout.
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow(ctx, "alice")
		require.False(t, ok)
	}

	time.Sleep(60 * time.Millisecond)
	ok, _ := l.Allow(ctx, "alice")
	assert.True(t, ok)
}

func TestCheck_MapsDenialToErrThrottled(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	require.NoError(t, ratelimit.Check(ctx, l, "alice"))

	err := ratelimit.Check(ctx, l, "alice")
	assert.ErrorIs(t, err, ratelimit.ErrThrottled)
}

func TestMemoryLimiter_ConcurrentSameKey(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(10, time.Minute)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := l.Allow(ctx, "alice"); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
}
