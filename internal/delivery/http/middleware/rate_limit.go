package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/delivery/http/response"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit  int
	Window time.Duration
	// KeyFunc extracts the throttled identity (default: client IP)
	KeyFunc   func(*gin.Context) string
	KeyPrefix string
	// FailClosed rejects requests when Redis errors instead of falling back to memory
	FailClosed bool
	// Redis is optional; nil keeps counters in process memory
	Redis goredis.Scripter
	Log   *zap.Logger
}

// fixed window: INCR, set TTL on first hit, return {count, ttl}
var fixedWindow = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`)

type windowEntry struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// WizardRateLimitConfig throttles the public wizard navigation endpoints. Submit
// has its own per-email limiter in the orchestrator.
func WizardRateLimitConfig(client goredis.Scripter, log *zap.Logger) RateLimitConfig {
	return RateLimitConfig{
		Limit:     120,
		Window:    time.Minute,
		KeyPrefix: "rl:wizard:",
		Redis:     client,
		Log:       log,
	}
}

// RateLimitMiddleware counts requests per key in a fixed window.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	var (
		store     sync.Map
		lastSweep time.Time
		sweepMu   sync.Mutex
	)

	inMemory := func(key string, now time.Time) (int, time.Time) {
		sweepMu.Lock()
		if now.Sub(lastSweep) > 5*time.Minute {
			store.Range(func(k, v interface{}) bool {
				if now.After(v.(*windowEntry).resetAt) {
					store.Delete(k)
				}
				return true
			})
			lastSweep = now
		}
		sweepMu.Unlock()

		v, _ := store.LoadOrStore(key, &windowEntry{resetAt: now.Add(config.Window)})
		entry := v.(*windowEntry)
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if now.After(entry.resetAt) {
			entry.count = 0
			entry.resetAt = now.Add(config.Window)
		}
		entry.count++
		return entry.count, entry.resetAt
	}

	return func(c *gin.Context) {
		key := config.KeyPrefix + config.KeyFunc(c)
		now := time.Now()

		var count int
		var resetAt time.Time
		if config.Redis != nil {
			var err error
			count, resetAt, err = countInRedis(c.Request.Context(), config.Redis, key, config.Window)
			if err != nil {
				config.Log.Warn("rate limit store unavailable", zap.String("key_prefix", config.KeyPrefix), zap.Error(err))
				if config.FailClosed {
					response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", nil)
					c.Abort()
					return
				}
				count, resetAt = inMemory(key, now)
			}
		} else {
			count, resetAt = inMemory(key, now)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Reset", resetAt.Format(time.RFC3339))
		if count > config.Limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			config.Log.Info("rate limit triggered",
				zap.String("client_ip", c.ClientIP()),
				zap.String("route", c.FullPath()))
			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.",
				map[string]interface{}{"retryAfter": retryAfter})
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(config.Limit-count))
		c.Next()
	}
}

func countInRedis(ctx context.Context, client goredis.Scripter, key string, window time.Duration) (int, time.Time, error) {
	result, err := fixedWindow.Run(ctx, client, []string{key}, int(window.Seconds())).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate limit eval failed: %w", err)
	}
	if len(result) < 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}
	count, _ := result[0].(int64)
	ttl, _ := result[1].(int64)
	return int(count), time.Now().Add(time.Duration(ttl) * time.Second), nil
}
