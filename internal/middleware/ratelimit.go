package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/makeasinger/stemsplit/pkg/response"
)

// maxTrackedClients bounds the in-memory limiter table before idle entries
// are swept.
const maxTrackedClients = 10000

// RateLimiter limits requests per client IP. Counters live in Redis when a
// client is given and in process memory otherwise.
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(redisClient *redis.Client, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		redis:   redisClient,
		logger:  logger.Named("ratelimit"),
		buckets: make(map[string]*bucket),
	}
}

// Limit creates a rate limiting middleware allowing maxRequests per window.
// A non-positive maxRequests disables it.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 {
			return c.Next()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())

		var (
			remaining  int
			retryAfter time.Duration
			allowed    bool
		)
		if rl.redis != nil {
			var err error
			allowed, remaining, retryAfter, err = rl.redisAllow(c.UserContext(), key, maxRequests, window)
			if err != nil {
				// If Redis fails, allow the request but log the error
				rl.logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				return c.Next()
			}
		} else {
			allowed, remaining, retryAfter = rl.memoryAllow(key, maxRequests, window)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			return response.RateLimited(c)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) redisAllow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, int, time.Duration, error) {
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, err
	}

	// Set expiration on first request
	if count == 1 {
		rl.redis.Expire(ctx, key, window)
	}

	if count > int64(maxRequests) {
		ttl, _ := rl.redis.TTL(ctx, key).Result()
		if ttl < 0 {
			ttl = window
		}
		return false, 0, ttl, nil
	}
	return true, maxRequests - int(count), 0, nil
}

// memoryAllow spends one token from a bucket that refills maxRequests times
// per window.
func (rl *RateLimiter) memoryAllow(key string, maxRequests int, window time.Duration) (bool, int, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxTrackedClients {
			rl.sweep(now, window)
		}
		every := window / time.Duration(maxRequests)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), maxRequests)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}

func (rl *RateLimiter) sweep(now time.Time, idle time.Duration) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
		}
	}
}

// UploadLimit limits uploads per hour
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

// MixLimit limits mix exports per minute
func (rl *RateLimiter) MixLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("mix", maxPerMin, time.Minute)
}
