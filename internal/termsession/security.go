package termsession

import (
	"sync"
	"time"
)

// Limits on client input to a terminal session.
const (
	// MaxInputMessageSize is the maximum size in bytes of a single client
	// frame. Larger frames are rejected.
	MaxInputMessageSize = 64 * 1024 // 64 KB

	// MaxCommandLength is the longest command line accepted for submission.
	MaxCommandLength = 8 * 1024

	// MessageRateLimit is the maximum number of frames per second from a client.
	MessageRateLimit = 20
	// MessageRateBurst is the burst allowance for the rate limiter.
	MessageRateBurst = 40
)

// RateLimiter is a token bucket applied to frames from one browser.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	available  float64
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter returns a full bucket holding burst tokens that refills at
// rate tokens per second.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		burst:      float64(burst),
		available:  float64(burst),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow takes one token, reporting false when the bucket is empty.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	t := rl.now()
	rl.available = min(rl.burst, rl.available+t.Sub(rl.lastRefill).Seconds()*rl.rate)
	rl.lastRefill = t

	if rl.available < 1 {
		return false
	}
	rl.available--
	return true
}
