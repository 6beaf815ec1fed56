package utils

import (
	"sync"
	"time"
)

// RateLimiter is an in-process token bucket. It throttles websocket frames
// and backs the HTTP limiter when Redis is not configured.
type RateLimiter struct {
	rate       int
	period     time.Duration
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		period:     period,
		tokens:     rate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed under the rate limit
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	tokensToAdd := int(now.Sub(rl.lastRefill).Nanoseconds() * int64(rl.rate) / rl.period.Nanoseconds())
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.rate {
			rl.tokens = rl.rate
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
