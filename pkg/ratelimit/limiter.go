package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of asking a limiter for one request
type Decision struct {
	Allowed bool
	// Limit is the number of requests allowed per window
	Limit int
	// Remaining is how many more requests fit in the current window
	Remaining int
	// RetryAfter is how long until the next request would be allowed.
	// Zero when Allowed is true.
	RetryAfter time.Duration
}

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Take records a request if the rate limit allows it
	Take() Decision
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	now          func() time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
		now:          time.Now,
	}
}

// Take consumes a token if one is available
func (tb *TokenBucket) Take() Decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)

	if tb.tokens > 0 {
		tb.tokens--
		return Decision{Allowed: true, Limit: tb.capacity, Remaining: tb.tokens}
	}

	return Decision{
		Limit:      tb.capacity,
		RetryAfter: tb.refillPeriod - now.Sub(tb.lastRefill),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.Take().Allowed
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return wait(ctx, tb)
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refill tops the bucket up once a full period has elapsed
func (tb *TokenBucket) refill(now time.Time) {
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Take records the request if the window has room for it
func (sw *SlidingWindow) Take() Decision {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return Decision{
			Allowed:   true,
			Limit:     sw.maxRequests,
			Remaining: sw.maxRequests - len(sw.requests),
		}
	}

	d := Decision{Limit: sw.maxRequests, RetryAfter: sw.windowSize}
	if len(sw.requests) > 0 {
		d.RetryAfter = sw.windowSize - now.Sub(sw.requests[0])
	}
	return d
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	return sw.Take().Allowed
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	return wait(ctx, sw)
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	// Find the first request that's within the window
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

func wait(ctx context.Context, l Limiter) error {
	for {
		d := l.Take()
		if d.Allowed {
			return nil
		}

		delay := d.RetryAfter
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
