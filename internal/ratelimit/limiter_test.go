package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestLimiter(t *testing.T, cfg Config) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(cfg, monitoring.NewMetrics())
	t.Cleanup(rl.Close)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestAllowExhaustsBurst(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{PerMinute: 60, Burst: 3})

	for i := 0; i < 3; i++ {
		res := rl.Allow("10.0.0.1")
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 60, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res := rl.Allow("10.0.0.1")
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Second, res.RetryAfter)
}

func TestAllowKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{PerMinute: 60, Burst: 1})

	assert.True(t, rl.Allow("a").Allowed)
	assert.False(t, rl.Allow("a").Allowed)
	assert.True(t, rl.Allow("b").Allowed)
	assert.Equal(t, 2, rl.Size())
}

func TestAllowRefillsOverTime(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{PerMinute: 60, Burst: 1})

	assert.True(t, rl.Allow("a").Allowed)
	assert.False(t, rl.Allow("a").Allowed)

	*clock = clock.Add(time.Second)
	assert.True(t, rl.Allow("a").Allowed)
}

func TestEvictIdle(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{PerMinute: 60, IdleTTL: time.Minute})

	rl.Allow("old")
	*clock = clock.Add(2 * time.Minute)
	rl.Allow("new")

	assert.Equal(t, 1, rl.evictIdle())
	assert.Equal(t, 1, rl.Size())
}

func TestNewRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(Config{}, nil)
	defer rl.Close()

	stats := rl.Stats()
	assert.Equal(t, 60, stats["per_minute"])
	assert.Equal(t, 60, stats["burst"])
}

func TestCloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(DefaultConfig(), nil)
	rl.Close()
	rl.Close()
}

func TestIPRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(Config{PerMinute: 60, Burst: 1}, metrics)
	defer rl.Close()

	r := gin.New()
	r.Use(rl.IPRateLimitMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
	assert.EqualValues(t, 1, metrics.RateLimited)
}
