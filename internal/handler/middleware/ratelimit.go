package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"cinema-order-engine/internal/handler/httperr"
	"cinema-order-engine/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl"

var errRateLimited = errors.New("rate limit exceeded")

// Refills continuously at rate tokens per second up to capacity.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now_ms
end

local elapsed = math.max(0, now_ms - ts)
tokens = math.min(capacity, tokens + (elapsed * rate / 1000))

local allowed = 0
local retry_after_ms = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now_ms)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, math.floor(tokens), retry_after_ms }
`)

type RateLimiter struct {
	rdb    redis.Scripter
	cfg    config.RateLimitConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewRateLimiter returns a limiter backed by rdb. A nil rdb disables limiting.
func NewRateLimiter(rdb redis.Scripter, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{rdb: rdb, cfg: cfg, now: time.Now, logger: logger}
}

// Limit keys buckets by payer when authenticated, by client IP otherwise.
// Redis failures let the request through.
func (r *RateLimiter) Limit(scope string) gin.HandlerFunc {
	if r == nil || r.rdb == nil || r.cfg.Capacity <= 0 || r.cfg.RefillRate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	ttl := int64(math.Ceil(float64(r.cfg.Capacity)/r.cfg.RefillRate)) + 1

	return func(c *gin.Context) {
		key := r.bucketKey(c, scope)
		vals, err := tokenBucketScript.Run(c.Request.Context(), r.rdb, []string{key},
			r.now().UnixMilli(), r.cfg.Capacity, r.cfg.RefillRate, ttl).Int64Slice()
		if err != nil || len(vals) != 3 {
			r.logger.Warn("rate limiter unavailable", "key", key, "error", fmt.Sprint(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(r.cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(vals[1], 10))

		if vals[0] != 1 {
			secs := int64(math.Ceil(float64(vals[2]) / 1000))
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			httperr.AbortWithError(c, http.StatusTooManyRequests, errRateLimited,
				"RATE_LIMITED", "Too many requests", gin.H{"retryAfter": secs})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) bucketKey(c *gin.Context, scope string) string {
	if userName, ok := GetUserName(c); ok {
		return rateLimitPrefix + ":" + scope + ":user:" + userName
	}
	return rateLimitPrefix + ":" + scope + ":ip:" + c.ClientIP()
}
