package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instalytics/pkg/aggregator"
	"instalytics/pkg/apify"
	"instalytics/pkg/apify/apifytest"
	"instalytics/pkg/cache"
	"instalytics/pkg/config"
	"instalytics/pkg/errors"
	"instalytics/pkg/instagram"
	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/models"
	"instalytics/pkg/ratelimit"
	"instalytics/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	srv     *Server
	fake    *apifytest.Server
	store   *storage.MemoryStore
	metrics *metrics.Metrics
	log     *logger.TestLogger
}

func newEnv(t *testing.T, mutate func(*config.Config)) *env {
	t.Helper()

	fake := apifytest.NewServer()
	t.Cleanup(fake.Close)

	cfg := config.DefaultConfig()
	cfg.Upstream.BaseURL = fake.URL()
	cfg.Upstream.Token = "token"
	cfg.Upstream.PollInterval = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewTestLogger()
	m := metrics.New()
	store := storage.NewMemoryStore()
	svc := cache.NewService(store, log, m)
	agg := aggregator.New(apify.NewClient(cfg.Upstream, log), svc, cfg, log, m)

	srv, err := New(cfg, agg, svc, log, m, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	return &env{srv: srv, fake: fake, store: store, metrics: m, log: log}
}

func (e *env) seed(handle string, followers int64) {
	e.fake.SetProfile(handle, instagram.RawProfile{
		Username:       handle,
		FullName:       "Full " + handle,
		FollowersCount: instagram.Count(followers),
	})
	e.fake.SetPosts(handle, instagram.RawPost{
		ShortCode:     handle + "1",
		DisplayURL:    "https://cdn.example.com/" + handle + ".jpg",
		LikesCount:    100,
		CommentsCount: 10,
	})
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "2025-03-01T12:00:00.000Z", body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	e := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestProfileMissThenHit(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("nasa", 1500)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/@NASA")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, "fresh", meta["dataSource"])
	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "1.5K", profile["followers"])
	assert.Equal(t, "public, max-age=604800", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "1 week", rec.Header().Get("X-Cache-Duration"))

	rec = do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa")
	require.Equal(t, http.StatusOK, rec.Code)
	meta = decode(t, rec)["meta"].(map[string]interface{})
	assert.Equal(t, "cache", meta["dataSource"])
	assert.Equal(t, 2, e.fake.RunCount())
}

func TestProfileInvalidHandle(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/bad%20name!")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid username", decode(t, rec)["error"])
	assert.Equal(t, 0, e.fake.RunCount())
}

func TestProfileNotFound(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/ghost")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Profile not found", body["error"])
	assert.Equal(t, "ghost", body["username"])
}

func TestProfileUpstreamFailure(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("nasa", 10)
	e.fake.FailRun("posts", "nasa", "FAILED")

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Failed to fetch profile data", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestPostsRequiresCachedProfile(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("nasa", 10)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa/posts")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Profile not cached. Please fetch profile first.", body["error"])
	assert.Equal(t, "GET /api/profile/nasa", body["suggestion"])
	assert.Equal(t, 0, e.fake.RunCount())

	require.Equal(t, http.StatusOK, do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa").Code)

	rec = do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, float64(1), body["total"])
}

func TestRefreshRefetches(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("nasa", 10)

	require.Equal(t, http.StatusOK, do(t, e.srv.Handler(), http.MethodGet, "/api/profile/nasa").Code)
	rec := do(t, e.srv.Handler(), http.MethodPost, "/api/profile/nasa/refresh")

	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode(t, rec)["meta"].(map[string]interface{})
	assert.Equal(t, "fresh", meta["dataSource"])
	assert.Equal(t, 4, e.fake.RunCount())
}

func TestListAndDelete(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("small", 10)
	e.seed("big", 2_000_000)

	for _, h := range []string{"small", "big"} {
		require.Equal(t, http.StatusOK, do(t, e.srv.Handler(), http.MethodGet, "/api/profile/"+h).Code)
	}

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/all")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
	first := body["profiles"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "big", first["username"])
	assert.Equal(t, "2.0M", first["followers"])

	rec = do(t, e.srv.Handler(), http.MethodDelete, "/api/profile/big")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, e.store.Len())

	rec = do(t, e.srv.Handler(), http.MethodDelete, "/api/profile/big")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareMissingParameter(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Please provide usernames to compare", body["error"])
	assert.Equal(t, compareExample, body["example"])
}

func TestCompareNeedsTwoDistinctHandles(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare?users=nasa,NASA,%20nasa")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Please provide at least 2 usernames to compare", body["error"])
	assert.Equal(t, []interface{}{"nasa"}, body["provided"])
	assert.Equal(t, 0, e.fake.RunCount())
}

func TestCompareRejectsInvalidHandle(t *testing.T) {
	e := newEnv(t, nil)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare?users=nasa,bad!name")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Invalid username", body["error"])
	assert.Equal(t, "bad!name", body["username"])
}

func TestCompareIgnoresEntriesPastTheCap(t *testing.T) {
	e := newEnv(t, nil)
	for _, h := range []string{"a1", "b1", "c1", "d1", "e1"} {
		e.seed(h, 10)
	}

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare?users=a1,b1,c1,d1,e1,bad!name")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profiles := decode(t, rec)["profiles"].([]interface{})
	assert.Len(t, profiles, 5)
}

func TestCompareSuccess(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("alpha", 100)
	e.seed("beta", 5000)
	e.seed("gamma", 10)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare?users=alpha,Beta,,ghost,gamma")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	profiles := body["profiles"].([]interface{})
	require.Len(t, profiles, 3)
	assert.Equal(t, "alpha", profiles[0].(map[string]interface{})["username"])
	assert.Equal(t, "beta", profiles[1].(map[string]interface{})["username"])

	insights := body["insights"].(map[string]interface{})
	assert.Equal(t, "beta", insights["mostFollowed"].(map[string]interface{})["username"])
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["profilesCompared"])
}

func TestComparePartialFailure(t *testing.T) {
	e := newEnv(t, nil)
	e.seed("alpha", 100)

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/compare?users=alpha,ghost1,ghost2")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Some profiles could not be fetched", body["error"])
	assert.Equal(t, []interface{}{"ghost1", "ghost2"}, body["failedProfiles"])
	assert.Equal(t, []interface{}{"alpha"}, body["successfulProfiles"])
	assert.Equal(t, "Profile not found on Instagram or API error", body["reason"])
}

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Strategy = config.StrategySlidingWindow
		cfg.RateLimit.MaxRequests = 2
		cfg.RateLimit.Window = time.Minute
	})

	for i := 0; i < 2; i++ {
		rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/all")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, e.srv.Handler(), http.MethodGet, "/api/profile/all")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Too many requests", body["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RateLimited))

	// probes are never throttled
	assert.Equal(t, http.StatusOK, do(t, e.srv.Handler(), http.MethodGet, "/api/health").Code)
}

func TestCORS(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/profile/all", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	do(t, e.srv.Handler(), http.MethodGet, "/api/health")

	rec := do(t, e.srv.Handler(), http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "instalytics_http_request_duration_seconds"))
}

// stubPipeline answers every call with err
type stubPipeline struct {
	err error
}

func (s stubPipeline) Profile(context.Context, string) (*models.Result, error) {
	return nil, s.err
}

func (s stubPipeline) Refresh(context.Context, string) (*models.Result, error) {
	return nil, s.err
}

func (s stubPipeline) Invalidate(context.Context, string) (bool, error) {
	return false, s.err
}

func (s stubPipeline) Posts(context.Context, string) (*models.Profile, error) {
	return nil, s.err
}

func (s stubPipeline) List(context.Context) []models.ProfileSummary {
	return nil
}

func (s stubPipeline) Compare(context.Context, []string) (*aggregator.Comparison, error) {
	return nil, s.err
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var okPinger = pingerFunc(func(context.Context) error { return nil })

func newStubServer(t *testing.T, p Pipeline, store Pinger) (*Server, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	srv, err := New(config.DefaultConfig(), p, store, log, metrics.New())
	require.NoError(t, err)
	return srv, log
}

func TestPersistenceFailureIsServerError(t *testing.T) {
	srv, log := newStubServer(t, stubPipeline{err: errors.NewPersistence(stderrors.New("disk full"))}, okPinger)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/profile/nasa")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch profile data", decode(t, rec)["error"])

	rec = do(t, srv.Handler(), http.MethodPost, "/api/profile/nasa/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to refresh profile", decode(t, rec)["error"])

	rec = do(t, srv.Handler(), http.MethodDelete, "/api/profile/nasa")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.True(t, log.HasMessage("Failed to fetch profile data"))
}

func TestCompareUnexpectedError(t *testing.T) {
	srv, _ := newStubServer(t, stubPipeline{err: stderrors.New("boom")}, okPinger)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/compare?users=a,b")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Failed to compare profiles", body["error"])
	assert.Equal(t, "boom", body["message"])
}

func TestReady(t *testing.T) {
	srv, _ := newStubServer(t, stubPipeline{}, okPinger)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	srv, _ = newStubServer(t, stubPipeline{}, pingerFunc(func(context.Context) error { return stderrors.New("database is locked") }))
	rec = do(t, srv.Handler(), http.MethodGet, "/api/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "database is locked", body["store_error"])
}

type panicPipeline struct{ stubPipeline }

func (panicPipeline) List(context.Context) []models.ProfileSummary { panic("boom") }

func TestRecoveryAnswersJSON(t *testing.T) {
	srv, log := newStubServer(t, panicPipeline{}, okPinger)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/profile/all")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
	assert.True(t, log.HasMessage("Handler panicked"))
}

func TestInjectedLimiter(t *testing.T) {
	log := logger.NewTestLogger()
	keyed := ratelimit.NewKeyed(func() ratelimit.Limiter { return ratelimit.NewTokenBucket(1, time.Hour) }, time.Hour)
	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false

	srv, err := New(cfg, stubPipeline{}, okPinger, log, metrics.New(), WithLimiter(keyed))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(t, srv.Handler(), http.MethodGet, "/api/profile/all").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, srv.Handler(), http.MethodGet, "/api/profile/all").Code)
	assert.Equal(t, 1, keyed.Len())
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Address = "127.0.0.1:0"
	srv, err := New(cfg, stubPipeline{}, okPinger, logger.NewTestLogger(), metrics.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 week", humanDuration(7*24*time.Hour))
	assert.Equal(t, "2 weeks", humanDuration(14*24*time.Hour))
	assert.Equal(t, "3 days", humanDuration(72*time.Hour))
	assert.Equal(t, "1h30m0s", humanDuration(90*time.Minute))
}
