package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter counts requests per key in fixed windows shared by every
// instance pointing at the same Redis.
type RedisLimiter struct {
	client      redis.UniversalClient
	prefix      string
	window      time.Duration
	maxRequests int64
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, window time.Duration, maxRequests int) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		window:      window,
		maxRequests: int64(maxRequests),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.client == nil || l.window <= 0 || l.maxRequests <= 0 {
		return true, nil
	}
	if l.prefix != "" {
		key = fmt.Sprintf("%s:%s", l.prefix, key)
	}
	windowSeconds := int64(l.window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	count, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowSeconds).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return count <= l.maxRequests, nil
}
