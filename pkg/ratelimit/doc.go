// Package ratelimit provides request throttling.
//
// Two single-bucket algorithms implement Limiter:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Used by the warmer to pace upstream calls
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Default for per-client HTTP throttling
//
// Keyed wraps a Factory and keeps one Limiter per key, evicting idle keys.
// It satisfies KeyedLimiter, which is what the HTTP middleware depends on, so
// a shared backend can replace it without touching the server.
//
// Usage:
//
//	factory, err := ratelimit.FactoryFor(cfg.RateLimit)
//	if err != nil {
//	    return err
//	}
//	limiter := ratelimit.NewKeyed(factory, cfg.RateLimit.Window)
//	router.Use(ratelimit.Middleware(limiter, nil))
//
//	// Block until allowed
//	pacer := ratelimit.NewTokenBucket(10, time.Minute)
//	if err := pacer.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
