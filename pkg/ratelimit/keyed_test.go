package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instalytics/pkg/config"
)

func TestKeyedSeparatesClients(t *testing.T) {
	k := NewKeyed(func() Limiter { return NewSlidingWindow(2, time.Minute) }, time.Minute)

	assert.True(t, k.Allow("10.0.0.1").Allowed)
	assert.True(t, k.Allow("10.0.0.1").Allowed)
	assert.False(t, k.Allow("10.0.0.1").Allowed)

	assert.True(t, k.Allow("10.0.0.2").Allowed, "other clients have their own budget")
	assert.Equal(t, 2, k.Len())
}

func TestKeyedEvictsIdleKeys(t *testing.T) {
	clock := newClock()
	k := NewKeyed(func() Limiter { return NewTokenBucket(1, time.Minute) }, time.Minute)
	k.now = clock.Now
	k.lastSweep = clock.Now()

	k.Allow("a")
	clock.Advance(30 * time.Second)
	k.Allow("b")
	clock.Advance(40 * time.Second)
	k.Allow("c")

	assert.Equal(t, 2, k.Len(), "a was idle for a full TTL")
}

func TestFactoryFor(t *testing.T) {
	f, err := FactoryFor(config.RateLimitConfig{Strategy: config.StrategyTokenBucket, MaxRequests: 3, Window: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, f())

	f, err = FactoryFor(config.RateLimitConfig{MaxRequests: 3, Window: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &SlidingWindow{}, f())

	_, err = FactoryFor(config.RateLimitConfig{Strategy: "leaky"})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rejected := 0
	k := NewKeyed(func() Limiter { return NewSlidingWindow(1, time.Minute) }, time.Minute)

	r := gin.New()
	r.Use(Middleware(k, func(*gin.Context) { rejected++ }))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 1, rejected)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body["error"])
	assert.Equal(t, float64(60), body["retryAfter"])
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
