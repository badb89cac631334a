package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = current unix time in seconds
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, math.ceil(capacity / rate) + 1)

return allowed
`)

// RedisLimiter shares token buckets across instances through Redis.
type RedisLimiter struct {
	client *redis.Client
	policy Policy
	prefix string
	now    func() time.Time
}

// RedisConfig holds the connection settings for RedisLimiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisLimiter creates a limiter backed by the given Redis server.
func NewRedisLimiter(cfg RedisConfig, policy Policy) *RedisLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisLimiter{
		client: client,
		policy: policy,
		prefix: "onestop:ratelimit:",
		now:    time.Now,
	}
}

// Ping checks connectivity.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

// RetryAfter returns the policy's refill time of one token.
func (r *RedisLimiter) RetryAfter() time.Duration {
	return r.policy.RetryAfter()
}

// Allow consumes one token from the key's bucket.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(r.now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, r.client, []string{r.prefix + key},
		r.policy.perSecond(), r.policy.burst(), 1, now).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, errors.New("redis limiter: empty script result")
		}
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return res == 1, nil
}
