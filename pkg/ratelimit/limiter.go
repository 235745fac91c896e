// Package ratelimit provides a Redis-backed token bucket shared by every API replica.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills and consumes atomically.
// KEYS[1]: bucket key
// ARGV[1]: rate (tokens/sec)
// ARGV[2]: burst (capacity)
// ARGV[3]: now (seconds, fractional)
// ARGV[4]: tokens requested
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local requested = tonumber(ARGV[4])

	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	local last_refill = tonumber(redis.call('HGET', key, 'last_refill'))

	if not tokens then
		tokens = burst
		last_refill = now
	end

	local delta = math.max(0, now - last_refill)
	local new_tokens = math.min(burst, tokens + (delta * rate))

	local allowed = 0
	if new_tokens >= requested then
		new_tokens = new_tokens - requested
		allowed = 1
	end
	redis.call('HSET', key, 'tokens', tostring(new_tokens), 'last_refill', tostring(now))
	redis.call('EXPIRE', key, math.ceil(burst / rate) + 1)
	return allowed
`)

// Limiter allows Rate submissions per second per client with bursts up to Burst.
type Limiter struct {
	rdb    *redis.Client
	rate   float64
	burst  int
	prefix string
	now    func() time.Time
}

// New creates a limiter. Non-positive values fall back to 5/s and a burst of 10.
func New(rdb *redis.Client, rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Limiter{
		rdb:    rdb,
		rate:   rate,
		burst:  burst,
		prefix: "ratelimit:submit:",
		now:    time.Now,
	}
}

// Allow takes one token from client's bucket and reports whether one was available.
func (l *Limiter) Allow(ctx context.Context, client string) (bool, error) {
	now := float64(l.now().UnixMilli()) / 1000
	res, err := tokenBucket.Run(ctx, l.rdb, []string{l.prefix + client}, l.rate, l.burst, now, 1).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check for %s: %w", client, err)
	}
	return res == 1, nil
}
