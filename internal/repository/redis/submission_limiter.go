package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"recruiting-pipeline/internal/domain"
)

// Sliding window over a sorted set.
// KEYS[1] = rate limit key
// ARGV[1] = max count allowed
// ARGV[2] = window size in seconds
// ARGV[3] = current timestamp (ms)
// Returns 1 if allowed, 0 if limited
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2]) * 1000
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    return 0
end

redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('PEXPIRE', key, window)
return 1
`

var slidingWindow = goredis.NewScript(slidingWindowScript)

type submissionLimiter struct {
	client       goredis.Scripter
	maxPerMinute int
	maxPerDay    int
	now          func() time.Time
}

// NewSubmissionLimiter limits submissions per IP per minute and per email per day.
// A nil client disables limiting.
func NewSubmissionLimiter(client goredis.Scripter, perMin, perDay int) domain.SubmissionLimiter {
	if perMin <= 0 {
		perMin = 10
	}
	if perDay <= 0 {
		perDay = 20
	}
	return &submissionLimiter{client: client, maxPerMinute: perMin, maxPerDay: perDay, now: time.Now}
}

// Allow returns (allowed, retryAfterSeconds, error). Redis errors fail closed.
func (l *submissionLimiter) Allow(ctx context.Context, ip, email string) (bool, int, error) {
	if l.client == nil {
		return true, 0, nil
	}
	now := l.now().UnixMilli()

	allowed, err := l.check(ctx, "ratelimit:submission:ip:"+ip, l.maxPerMinute, 60, now)
	if err != nil {
		return false, 60, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		return false, 60, nil
	}

	if email != "" {
		sum := sha256.Sum256([]byte(email))
		key := "ratelimit:submission:email:" + hex.EncodeToString(sum[:8])
		allowed, err = l.check(ctx, key, l.maxPerDay, 86400, now)
		if err != nil {
			return false, 3600, fmt.Errorf("rate limit check failed: %w", err)
		}
		if !allowed {
			return false, 3600, nil
		}
	}
	return true, 0, nil
}

func (l *submissionLimiter) check(ctx context.Context, key string, limit, window int, now int64) (bool, error) {
	result, err := slidingWindow.Run(ctx, l.client, []string{key}, limit, window, now).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
