package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a Redis-backed sliding-window Limiter. Each key maps to a
// sorted set of request timestamps; prune, count and admit run in one Lua
// script so the window stays consistent across server instances.
type RedisLimiter struct {
	client    redis.Cmdable
	limit     int
	window    time.Duration
	keyPrefix string
}

var _ Limiter = (*RedisLimiter)(nil)

// allowScript prunes expired entries, checks the count, and records the new
// request atomically.
// KEYS[1] = window sorted set
// ARGV[1] = cutoff (unix nanos, exclusive)
// ARGV[2] = limit
// ARGV[3] = now (unix nanos)
// ARGV[4] = window TTL in milliseconds
//
// Returns 1 when admitted, 0 when throttled.
var allowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[2]) then
    return 0
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// NewRedisLimiter creates a Redis-backed limiter. The client must be a
// connected *redis.Client or *redis.ClusterClient.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: "ratelimit:",
	}
}

// Allow runs the admission script for the key's window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	res, err := allowScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		strconv.FormatInt(now.Add(-l.window).UnixNano(), 10),
		strconv.Itoa(l.limit),
		strconv.FormatInt(now.UnixNano(), 10),
		strconv.FormatInt(l.window.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
