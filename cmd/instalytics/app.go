package main

import (
	"context"
	"fmt"

	"instalytics/pkg/aggregator"
	"instalytics/pkg/apify"
	"instalytics/pkg/auth"
	"instalytics/pkg/cache"
	"instalytics/pkg/config"
	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/storage"
)

// app holds the wired pipeline shared by every command
type app struct {
	cfg        *config.Config
	log        logger.Logger
	metrics    *metrics.Metrics
	store      storage.Store
	cache      *cache.Service
	aggregator *aggregator.Aggregator
}

// tokenResolver finds a stored token when none is configured
type tokenResolver interface {
	Resolve() string
}

// newApp opens the store and builds the pipeline. One-shot commands log at
// warn level unless --log-level says otherwise, so tables stay readable.
func newApp(ctx context.Context, cfg *config.Config, oneShot bool) (*app, error) {
	if oneShot && logLevel == "" {
		cfg.Logging.Level = "warn"
	}

	log, err := logger.Initialize(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Upstream.Token == "" {
		if manager, err := auth.NewManager(); err == nil {
			cfg.Upstream.Token = resolveToken(cfg.Upstream.Token, manager)
		} else {
			log.WithError(err).Warn("Token store unavailable")
		}
	}

	store, err := storage.Open(ctx, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	m := metrics.New()
	svc := cache.NewService(store, log, m, cache.WithTTL(cfg.Cache.TTL))
	client := apify.NewClient(cfg.Upstream, log)

	return &app{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		store:      store,
		cache:      svc,
		aggregator: aggregator.New(client, svc, cfg, log, m),
	}, nil
}

// requireToken fails commands that must reach the upstream actor
func (a *app) requireToken() error {
	if a.cfg.Upstream.Token == "" {
		return fmt.Errorf("no Apify token configured; run 'instalytics auth set-token' or set INSTALYTICS_APIFY_TOKEN")
	}
	return nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close cache store")
	}
}

// resolveToken prefers an explicit token over stored ones
func resolveToken(configured string, r tokenResolver) string {
	if configured != "" {
		return configured
	}
	return r.Resolve()
}
