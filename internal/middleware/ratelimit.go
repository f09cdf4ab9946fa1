package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sliding-window limiter as one atomic Lua script: drop entries outside the
// window, count, and only add the new request while under the limit.
// KEYS[1]=limiter key, ARGV: now, window start, window seconds, member, limit.
// Returns the count inside the window, or -1 when the request is over limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits checkout traffic per authenticated user, falling back
// to the client IP before auth ran. Redis being down fails open.
func RedisRateLimit(rdb *rd.Client, log *zap.Logger, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var key string
			if userID := UserID(c); userID != "" {
				key = fmt.Sprintf("rate_limit:checkout:user:%s", userID)
			} else {
				key = fmt.Sprintf("rate_limit:checkout:ip:%s", c.RealIP())
			}

			now := time.Now().Unix()
			windowSec := int64(window.Seconds())
			windowStart := now - windowSec
			member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

			res, err := rdb.Eval(c.Request().Context(), luaRateLimit, []string{key},
				now, windowStart, windowSec, member, limit).Int()

			if err != nil {
				log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				return next(c)
			}

			if res < 0 {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
			}
			return next(c)
		}
	}
}
