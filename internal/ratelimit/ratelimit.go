// Package ratelimit provides sliding-window admission control keyed by user.
//
// A user is allowed at most N requests in any trailing window. Admission is
// independent of token accounting: a throttled request is rejected before
// any ledger work happens.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrThrottled reports a denied admission.
var ErrThrottled = errors.New("ratelimit: too many requests")

// Limiter admits or rejects a request for the given key.
type Limiter interface {
	// Allow reports whether the request is admitted. A denied request is
	// not recorded against the window.
	Allow(ctx context.Context, key string) (bool, error)
}

// Check runs admission for the key and maps a denial to ErrThrottled.
// Backend failures pass through unchanged so callers can tell an
// unavailable limiter from a throttled request.
func Check(ctx context.Context, l Limiter, key string) error {
	admitted, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !admitted {
		return ErrThrottled
	}
	return nil
}

// MemoryLimiter is an in-memory sliding-window Limiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter admitting at most limit requests per
// key in any trailing window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow prunes timestamps outside the window, admits if fewer than limit
// remain, and records the new request on admission.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}
