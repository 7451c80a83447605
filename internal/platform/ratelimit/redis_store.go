package ratelimit

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// redisStore implements Store with an atomic INCR/PEXPIRE/PTTL script.
type redisStore struct{ rc redis.UniversalClient }

// NewRedisStore creates a Store on top of an existing Redis client.
func NewRedisStore(rc redis.UniversalClient) Store {
	return &redisStore{rc: rc}
}

var luaFixedWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[1]) end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`)

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

func (s *redisStore) Allow(c echo.Context, key string, limit int, window time.Duration) (bool, int, error) {
	ctx := c.Request().Context()
	res, err := luaFixedWindow.Run(ctx, s.rc, []string{"rl:" + key}, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return false, 0, nil
	}
	current, ttlms := toInt64(arr[0]), toInt64(arr[1])
	if current <= int64(limit) {
		return true, 0, nil
	}
	if ttlms <= 0 {
		return false, 0, nil
	}
	return false, int((ttlms + 999) / 1000), nil
}
