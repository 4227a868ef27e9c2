package aggregator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"instalytics/pkg/analytics"
	"instalytics/pkg/cache"
	"instalytics/pkg/config"
	"instalytics/pkg/errors"
	"instalytics/pkg/extract"
	"instalytics/pkg/instagram"
	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/models"
)

const (
	pathProfile = "profile"
	pathCompare = "compare"

	callDetails = "details"
	callPosts   = "posts"

	partialReason = "Profile not found on Instagram or API error"
)

// Aggregator serves profiles from the cache or assembles them from upstream
type Aggregator struct {
	upstream Upstream
	cache    *cache.Service
	compare  config.CompareConfig
	listSize int
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// Comparison is the outcome of a multi-profile lookup
type Comparison struct {
	// Results holds the successful lookups in request order
	Results []models.Result
	// Failed holds the handles that could not be served
	Failed []string
}

// New creates an Aggregator
func New(upstream Upstream, c *cache.Service, cfg *config.Config, log logger.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		upstream: upstream,
		cache:    c,
		compare:  cfg.Compare,
		listSize: cfg.Cache.ListLimit,
		logger:   log,
		metrics:  m,
	}
}

// Profile returns the cached profile for handle, fetching it on a miss
func (a *Aggregator) Profile(ctx context.Context, handle string) (*models.Result, error) {
	return a.resolve(ctx, normalize(handle), pathProfile)
}

// Refresh drops any cached record for handle and fetches it again
func (a *Aggregator) Refresh(ctx context.Context, handle string) (*models.Result, error) {
	handle = normalize(handle)
	if _, err := a.cache.Delete(ctx, handle); err != nil {
		return nil, errors.NewPersistence(err)
	}
	return a.resolve(ctx, handle, pathProfile)
}

// Invalidate drops the cached record and reports whether there was one
func (a *Aggregator) Invalidate(ctx context.Context, handle string) (bool, error) {
	removed, err := a.cache.Delete(ctx, normalize(handle))
	if err != nil {
		return false, errors.NewPersistence(err)
	}
	return removed, nil
}

// Posts returns the cached profile for handle without ever fetching
func (a *Aggregator) Posts(ctx context.Context, handle string) (*models.Profile, error) {
	handle = normalize(handle)
	p := a.cache.Get(ctx, handle)
	if p == nil {
		return nil, errors.NewNotFound(handle)
	}
	return p, nil
}

// List returns the cached profile summaries, most followed first
func (a *Aggregator) List(ctx context.Context) []models.ProfileSummary {
	return a.cache.List(ctx, a.listSize)
}

// Compare resolves every handle concurrently, each under its own deadline.
// It fails only when fewer than the configured minimum succeed.
func (a *Aggregator) Compare(ctx context.Context, handles []string) (*Comparison, error) {
	handles = Distinct(handles, a.compare.MaxProfiles)
	if len(handles) < a.compare.MinProfiles {
		return nil, errors.NewInvalidInput(fmt.Sprintf("at least %d profiles are required", a.compare.MinProfiles))
	}

	results := make([]*models.Result, len(handles))

	var g errgroup.Group
	for i, handle := range handles {
		g.Go(func() error {
			hctx, cancel := a.handleContext(ctx)
			defer cancel()

			r, err := a.resolve(hctx, handle, pathCompare)
			if err != nil {
				a.logger.WithError(err).WarnWithFields("Comparison profile failed", map[string]interface{}{
					"handle": handle,
				})
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	cmp := &Comparison{}
	var succeeded []string
	for i, r := range results {
		if r == nil {
			cmp.Failed = append(cmp.Failed, handles[i])
			continue
		}
		cmp.Results = append(cmp.Results, *r)
		succeeded = append(succeeded, r.Profile.Username)
	}

	if len(cmp.Results) < a.compare.MinProfiles {
		return nil, &errors.PartialComparisonError{
			Failed:    cmp.Failed,
			Succeeded: nonNil(succeeded),
			Reason:    partialReason,
		}
	}
	return cmp, nil
}

func (a *Aggregator) handleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.compare.HandleTimeout > 0 {
		return context.WithTimeout(ctx, a.compare.HandleTimeout)
	}
	return context.WithCancel(ctx)
}

// resolve runs lookup, fetch, assemble, persist and serve for one handle
func (a *Aggregator) resolve(ctx context.Context, handle, path string) (*models.Result, error) {
	start := time.Now()

	if p := a.cache.Get(ctx, handle); p != nil {
		a.served(handle, models.SourceCache, start)
		return &models.Result{Profile: p, Source: models.SourceCache}, nil
	}

	p, err := a.fetch(ctx, handle)
	if err != nil {
		if errors.Is(err, errors.ErrorTypeNotFound) {
			a.metrics.PipelineResults.WithLabelValues(metrics.OutcomeNotFound).Inc()
		} else {
			a.metrics.PipelineResults.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return nil, err
	}

	if err := a.cache.Upsert(ctx, p); err != nil {
		a.metrics.PersistenceFailures.WithLabelValues(path).Inc()
		a.logger.WithError(err).ErrorWithFields("Failed to cache profile", map[string]interface{}{
			"handle": handle,
			"path":   path,
		})
		if path == pathProfile {
			a.metrics.PipelineResults.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, errors.NewPersistence(err)
		}
	}

	a.served(handle, models.SourceFresh, start)
	return &models.Result{Profile: p, Source: models.SourceFresh}, nil
}

// fetch runs both upstream calls and assembles the canonical profile.
// The first failing call cancels the other.
func (a *Aggregator) fetch(ctx context.Context, handle string) (*models.Profile, error) {
	var (
		details []instagram.RawProfile
		posts   []instagram.RawPost
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := a.upstream.FetchProfileDetails(gctx, handle)
		if err != nil {
			return a.upstreamFailed(ctx, gctx, callDetails, handle, err)
		}
		details = items
		return nil
	})
	g.Go(func() error {
		items, err := a.upstream.FetchPosts(gctx, handle)
		if err != nil {
			return a.upstreamFailed(ctx, gctx, callPosts, handle, err)
		}
		posts = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(details) == 0 {
		return nil, errors.NewNotFound(handle)
	}

	p := extract.Profile(details, handle)
	p.Posts = extract.Posts(details, posts)
	p.Analytics = analytics.Calculate(p.Posts, p.FollowersCount)
	p.Hashtags = extract.AllHashtags(p.Posts)

	return &p, nil
}

// upstreamFailed counts the failure unless the call only stopped because its
// sibling had already failed
func (a *Aggregator) upstreamFailed(parent, group context.Context, call, handle string, err error) error {
	if parent.Err() != nil || group.Err() == nil || !stderrors.Is(err, context.Canceled) {
		a.metrics.UpstreamFailures.WithLabelValues(call).Inc()
	}
	return errors.NewUpstream(err, fmt.Sprintf("%s call failed for %s", call, handle))
}

func (a *Aggregator) served(handle string, source models.DataSource, start time.Time) {
	a.metrics.PipelineResults.WithLabelValues(string(source)).Inc()
	a.logger.InfoWithFields("Profile served", map[string]interface{}{
		"handle":      handle,
		"source":      source,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Distinct lowercases and trims handles, drops empty and repeated entries and
// keeps at most max of them in their original order
func Distinct(handles []string, max int) []string {
	seen := make(map[string]bool, len(handles))
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		h = normalize(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// SplitHandles parses a comma separated handle list such as "a, B ,c"
func SplitHandles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
