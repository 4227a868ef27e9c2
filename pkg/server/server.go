// Package server exposes the profile pipeline over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"instalytics/pkg/aggregator"
	"instalytics/pkg/config"
	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/models"
	"instalytics/pkg/ratelimit"
)

// Pipeline is the part of the aggregator the handlers call
type Pipeline interface {
	Profile(ctx context.Context, handle string) (*models.Result, error)
	Refresh(ctx context.Context, handle string) (*models.Result, error)
	Invalidate(ctx context.Context, handle string) (bool, error)
	Posts(ctx context.Context, handle string) (*models.Profile, error)
	List(ctx context.Context) []models.ProfileSummary
	Compare(ctx context.Context, handles []string) (*aggregator.Comparison, error)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the pipeline
type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	store    Pinger
	limiter  ratelimit.KeyedLimiter
	logger   logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	engine *gin.Engine
	http   *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithLimiter replaces the in-memory per-client limiter built from config
func WithLimiter(l ratelimit.KeyedLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithClock overrides the clock used for response timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New builds the router. Rate limiting is skipped when disabled in cfg and no
// limiter is supplied.
func New(cfg *config.Config, p Pipeline, store Pinger, log logger.Logger, m *metrics.Metrics, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		store:    store,
		logger:   log.WithField("component", "http_server"),
		metrics:  m,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil && cfg.RateLimit.Enabled {
		factory, err := ratelimit.FactoryFor(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to build rate limiter: %w", err)
		}
		s.limiter = ratelimit.NewKeyed(factory, cfg.RateLimit.Window)
	}

	engine := gin.New()
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			return nil, fmt.Errorf("invalid trusted proxies: %w", err)
		}
	} else if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	s.engine = engine
	s.routes()

	s.http = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

func (s *Server) routes() {
	s.engine.Use(
		s.recovery(),
		requestID(),
		s.requestLogger(),
		securityHeaders(),
		cors(s.cfg.Server.CORSOrigins),
	)

	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api")
	api.GET("/health", s.health)
	api.GET("/ready", s.ready)

	limited := api.Group("")
	if s.limiter != nil {
		limited.Use(ratelimit.Middleware(s.limiter, func(c *gin.Context) {
			s.metrics.RateLimited.Inc()
			s.logger.WarnWithFields("Request rate limited", map[string]interface{}{
				"client_ip":  c.ClientIP(),
				"request_id": RequestID(c),
			})
		}))
	}

	profile := limited.Group("/profile")
	profile.GET("/all", s.listProfiles)
	profile.GET("/:handle", s.getProfile)
	profile.GET("/:handle/posts", s.getPosts)
	profile.POST("/:handle/refresh", s.refreshProfile)
	profile.DELETE("/:handle", s.deleteProfile)

	limited.GET("/compare", s.compare)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "http_server", map[string]interface{}{
			"address":    s.cfg.Server.Address,
			"rate_limit": s.limiter != nil,
		})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.LogComponentStop(s.logger, "http_server", "context cancelled")
	return nil
}
