// Package cache applies the profile cache policy on top of a storage backend.
//
// Reads favour availability: a failing Get or List is logged, counted in
// instalytics_cache_read_errors_total and reported to the caller as a miss.
// Writes stamp the cache window and surface every error.
package cache

import (
	"context"
	"time"

	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/models"
	"instalytics/pkg/storage"
)

// DefaultTTL is the validity window of a freshly written profile
const DefaultTTL = 7 * 24 * time.Hour

// Service wraps a Store with the clock and TTL
type Service struct {
	store   storage.Store
	ttl     time.Duration
	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewService creates a cache service over store
func NewService(store storage.Store, log logger.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   store,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  log,
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the valid record for handle, or nil when there is none or the
// store failed
func (s *Service) Get(ctx context.Context, handle string) *models.Profile {
	p, err := s.store.Get(ctx, handle, s.now())
	if err != nil {
		s.readFailed("get", handle, err)
		return nil
	}
	if p == nil {
		logger.LogCacheEvent(s.logger, "miss", handle)
		return nil
	}
	logger.LogCacheEvent(s.logger, "hit", handle)
	return p
}

// Upsert stamps profile with a new cache window and writes it whole
func (s *Service) Upsert(ctx context.Context, profile *models.Profile) error {
	now := s.now()
	profile.LastFetched = now
	profile.ExpiresAt = now.Add(s.ttl)

	if err := s.store.Upsert(ctx, profile); err != nil {
		return err
	}
	logger.LogCacheEvent(s.logger, "store", profile.Handle)
	return nil
}

// List returns up to limit summaries, or an empty list when the store failed
func (s *Service) List(ctx context.Context, limit int) []models.ProfileSummary {
	summaries, err := s.store.List(ctx, limit)
	if err != nil {
		s.readFailed("list", "", err)
		return []models.ProfileSummary{}
	}
	return summaries
}

// Delete removes the record for handle and reports whether it existed
func (s *Service) Delete(ctx context.Context, handle string) (bool, error) {
	removed, err := s.store.Delete(ctx, handle)
	if err != nil {
		return false, err
	}
	if removed {
		logger.LogCacheEvent(s.logger, "invalidate", handle)
	}
	return removed, nil
}

// PurgeExpired removes records whose window has closed
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now())
}

// Ping checks the underlying store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// TTL returns the validity window applied on write
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) readFailed(op, handle string, err error) {
	s.metrics.CacheReadErrors.WithLabelValues(op).Inc()
	s.logger.WithError(err).ErrorWithFields("Cache read failed, serving as miss", map[string]interface{}{
		"op":     op,
		"handle": handle,
	})
}
