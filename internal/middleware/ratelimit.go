package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
)

// bucketScript takes one token from the bucket at KEYS[1], refilling it
// continuously at refill/interval tokens per millisecond. The timestamp is
// stored as received so it never round-trips through a Lua float.
// ARGV: now_ms, capacity, refill, interval_ms, ttl_seconds.
// Returns {allowed, whole tokens left, ms until the next token}.
var bucketScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local per_ms = tonumber(ARGV[3]) / tonumber(ARGV[4])

	local tokens = capacity
	local saved = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
	if saved[1] and saved[2] then
		local elapsed = math.max(0, now - tonumber(saved[2]))
		tokens = math.min(capacity, tonumber(saved[1]) + elapsed * per_ms)
	end

	local allowed = 0
	local wait_ms = 0
	if tokens >= 1 then
		allowed = 1
		tokens = tokens - 1
	else
		wait_ms = math.ceil((1 - tokens) / per_ms)
	end

	redis.call('HMSET', KEYS[1], 'tokens', tostring(tokens), 'ts', ARGV[1])
	redis.call('EXPIRE', KEYS[1], ARGV[5])
	return { allowed, math.floor(tokens), wait_ms }
`)

// NewTokenBucket throttles login attempts per client address with a
// Redis token bucket. Redis failures fail open so an outage never locks
// users out.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logger.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.Normalized()
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			ctx := log.WithField(c.Request().Context(), "rate_key", key)

			reply, err := bucketScript.Run(ctx, rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(reply) != 3 {
				if err == nil {
					err = fmt.Errorf("unexpected bucket reply %v", reply)
				}
				log.Warn(ctx, "ratelimit.redis_failed", err)
				return next(c)
			}
			allowed, remaining, waitMs := reply[0] == 1, reply[1], reply[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if allowed {
				return next(c)
			}

			// whole seconds, rounded up
			retryAfter := (waitMs + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			log.Debug(ctx, "ratelimit.blocked")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
		}
	}
}

// rateKey buckets by client address. The "ip_route" strategy adds the
// route so one address gets a separate bucket per guarded endpoint.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	if strings.EqualFold(cfg.KeyStrategy, "ip_route") {
		return fmt.Sprintf("%s:%s:%s %s", cfg.Prefix, ip, c.Request().Method, c.Path())
	}
	return fmt.Sprintf("%s:%s", cfg.Prefix, ip)
}
