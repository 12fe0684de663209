package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiterStats represents rate limiter statistics
type RateLimiterStats struct {
	Rate            float64 `json:"rate"`
	Burst           int     `json:"burst"`
	AllowedRequests int64   `json:"allowed_requests"`
	BlockedRequests int64   `json:"blocked_requests"`
	CurrentTokens   float64 `json:"current_tokens"`
}

// TokenBucketRateLimiter implements the token bucket algorithm for rate limiting.
// Tokens are added at a constant rate and consumed by requests.
type TokenBucketRateLimiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastTime time.Time
	now      func() time.Time

	allowedRequests int64
	blockedRequests int64

	mu sync.Mutex
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter with the specified
// rate (tokens per second) and burst capacity (maximum tokens).
func NewTokenBucketRateLimiter(rate float64, burst int) *TokenBucketRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// Allow checks if a request is allowed immediately.
// Returns true if a token is available and consumes it, false otherwise.
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		atomic.AddInt64(&tb.allowedRequests, 1)
		return true
	}
	atomic.AddInt64(&tb.blockedRequests, 1)
	return false
}

// Wait blocks until a request is allowed or ctx is done
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1.0 {
			tb.tokens--
			atomic.AddInt64(&tb.allowedRequests, 1)
			tb.mu.Unlock()
			return nil
		}
		deficit := 1.0 - tb.tokens
		wait := time.Duration(deficit / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			atomic.AddInt64(&tb.blockedRequests, 1)
			return ctx.Err()
		}
	}
}

// refill adds tokens based on elapsed time
func (tb *TokenBucketRateLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastTime).Seconds()

	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastTime = now
}

// GetStats returns rate limiter statistics
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return RateLimiterStats{
		Rate:            tb.rate,
		Burst:           tb.burst,
		AllowedRequests: atomic.LoadInt64(&tb.allowedRequests),
		BlockedRequests: atomic.LoadInt64(&tb.blockedRequests),
		CurrentTokens:   tb.tokens,
	}
}
