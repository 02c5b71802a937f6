package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically. Bucket state is a
// hash {tokens, last_refill_ms} with a TTL of one idle hour.
//
// KEYS[1] bucket key
// ARGV[1] requested tokens
// ARGV[2] capacity
// ARGV[3] refill rate
// ARGV[4] refill interval in ms
// ARGV[5] now in ms
//
// Returns {remaining, last_refill_ms}.
var tokenBucketScript = redis.NewScript(`
local requested = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil then
	tokens = capacity
	last_refill = now
end

local max_intervals = math.floor(capacity / rate) + 1
local intervals = math.floor((now - last_refill) / interval)
if intervals > max_intervals then
	intervals = max_intervals
end
if intervals > 0 then
	tokens = math.min(tokens + intervals * rate, capacity)
	last_refill = now
end

local remaining
if tokens < requested then
	remaining = tokens - requested
else
	tokens = tokens - requested
	remaining = tokens
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('PEXPIRE', KEYS[1], 3600000)

return {remaining, last_refill}
`)

// RedisStore keeps bucket state in Redis so limits hold across
// instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed bucket store. Keys are stored
// under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	now := time.Now()
	res, err := tokenBucketScript.Run(ctx, rs.client,
		[]string{rs.prefix + ":" + key},
		tokens,
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply", ErrStoreUnavailable)
	}

	remaining := int(res[0])
	resetAt := time.UnixMilli(res[1]).Add(config.RefillInterval)
	return remaining, resetAt, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
