package middleware

import (
	"context"
	"fmt"
	"safegate/utils"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis     *redis.Client // nil falls back to per-process token buckets
	Requests  int
	Window    time.Duration
	KeyPrefix string
}

type RateLimiter struct {
	config RateLimitConfig

	mu    sync.Mutex
	local map[string]*utils.RateLimiter
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.Requests <= 0 {
		config.Requests = 30
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &RateLimiter{
		config: config,
		local:  make(map[string]*utils.RateLimiter),
	}
}

// Middleware limits per user when authenticated, otherwise per client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.key(c)

		allowed, remaining, err := rl.check(c.Request.Context(), key)
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		resetTime := time.Now().Add(rl.config.Window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		if remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			utils.HandleServiceError(c, utils.NewRateLimitError("Too many requests, slow down"), nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if userID := c.GetString(ContextUserID); userID != "" {
		return fmt.Sprintf("%s:user:%s", rl.config.KeyPrefix, userID)
	}
	return fmt.Sprintf("%s:ip:%s", rl.config.KeyPrefix, c.ClientIP())
}

func (rl *RateLimiter) check(ctx context.Context, key string) (bool, int, error) {
	if rl.config.Redis == nil {
		return rl.checkLocal(key), -1, nil
	}
	return rl.checkRedis(ctx, key)
}

func (rl *RateLimiter) checkLocal(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.local[key]
	if !ok {
		limiter = utils.NewRateLimiter(rl.config.Requests, rl.config.Window)
		rl.local[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// checkRedis is a sliding window log over a sorted set.
func (rl *RateLimiter) checkRedis(ctx context.Context, key string) (bool, int, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := rl.config.Redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-rl.config.Window).UnixNano(), 10))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, rl.config.Window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	current := int(count.Val())
	if current >= rl.config.Requests {
		rl.config.Redis.ZRem(ctx, key, member)
		return false, 0, nil
	}

	remaining := rl.config.Requests - current - 1
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}
