package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"instalytics/pkg/config"
)

// KeyedLimiter throttles requests per key, such as a client IP. An in-memory
// implementation serves a single instance; a shared store can implement the
// same interface for several instances.
type KeyedLimiter interface {
	Allow(key string) Decision
}

// Factory builds the limiter for a newly seen key
type Factory func() Limiter

// FactoryFor returns the limiter factory configured by cfg
func FactoryFor(cfg config.RateLimitConfig) (Factory, error) {
	switch cfg.Strategy {
	case config.StrategySlidingWindow, "":
		return func() Limiter { return NewSlidingWindow(cfg.MaxRequests, cfg.Window) }, nil
	case config.StrategyTokenBucket:
		return func() Limiter { return NewTokenBucket(cfg.MaxRequests, cfg.Window) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", cfg.Strategy)
	}
}

type keyedEntry struct {
	limiter  Limiter
	lastSeen time.Time
}

// Keyed keeps one Limiter per key in memory and forgets keys that have been
// idle longer than idleTTL
type Keyed struct {
	factory   Factory
	idleTTL   time.Duration
	entries   map[string]*keyedEntry
	lastSweep time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewKeyed creates a per-key limiter. idleTTL should be at least the limiter
// window so an evicted key could not have been throttled anyway.
func NewKeyed(factory Factory, idleTTL time.Duration) *Keyed {
	return &Keyed{
		factory:   factory,
		idleTTL:   idleTTL,
		entries:   make(map[string]*keyedEntry),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow takes one request for key
func (k *Keyed) Allow(key string) Decision {
	k.mu.Lock()
	now := k.now()
	if k.idleTTL > 0 && now.Sub(k.lastSweep) >= k.idleTTL {
		k.sweep(now)
	}

	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: k.factory()}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.Take()
}

// Len returns the number of keys currently tracked
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// sweep drops idle keys; callers hold k.mu
func (k *Keyed) sweep(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) >= k.idleTTL {
			delete(k.entries, key)
		}
	}
	k.lastSweep = now
}
