package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window limiter shared across service instances,
// for deployments where several processes invalidate against the same redis.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
}

func NewRedisLimiter(addr, password string, db int, perMinute int) *RedisLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: password,
		DB:       db,
	})
	return &RedisLimiter{
		client: rdb,
		limit:  perMinute,
		window: time.Minute,
	}
}

// Sliding window over a sorted set. Scores and members are the request
// timestamp in microseconds; same-microsecond requests dedupe to one entry,
// which slightly undercounts and is acceptable here.
const allowScript = `
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local window_start = now - tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, now)
		redis.call('EXPIRE', key, tonumber(ARGV[4]))
		return 1
	end

	return 0
`

func (r *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	now := time.Now().UnixMicro()
	expireSeconds := int(r.window.Seconds()) + 1

	val, err := r.client.Eval(ctx, allowScript,
		[]string{"ratelimit:invalidate:" + key},
		r.limit, now, r.window.Microseconds(), expireSeconds).Int()
	if err != nil {
		// Fail open: an unreachable redis must not block invalidation.
		return true
	}
	return val == 1
}
