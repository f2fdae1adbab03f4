package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestKeyDistinguishesPathAndBody(t *testing.T) {
	base := Key(http.MethodPost, "/analyze", []byte("a"))

	assert.Equal(t, base, Key(http.MethodPost, "/analyze", []byte("a")))
	assert.NotEqual(t, base, Key(http.MethodPost, "/analyze", []byte("b")))
	assert.NotEqual(t, base, Key(http.MethodPost, "/series/1", []byte("a")))
	assert.Len(t, base, 64)
}

func TestGetHonoursTTL(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("k", "application/json", []byte(`{}`))
	item, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "application/json", item.ContentType)

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats()["expired_items"])

	c.purge()
	assert.Equal(t, 0, c.Size())
}

func TestCloseStopsCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCache(time.Minute)
	c.Close()
	c.Close()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCache(time.Minute)
	defer c.Close()
	metrics := monitoring.NewMetrics()

	var calls int32
	r := gin.New()
	r.Use(c.Middleware(metrics, "/analyze"))
	r.POST("/analyze", func(ctx *gin.Context) {
		atomic.AddInt32(&calls, 1)
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/extract", func(ctx *gin.Context) {
		atomic.AddInt32(&calls, 1)
		ctx.Status(http.StatusOK)
	})

	do := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return w
	}

	first := do("/analyze", "Question 1.")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do("/analyze", "Question 1.")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")

	do("/extract", "x")
	do("/extract", "x")

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.EqualValues(t, 1, metrics.CacheHits)
	assert.EqualValues(t, 1, metrics.CacheMisses)
}

func TestMiddlewareSkipsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCache(time.Minute)
	defer c.Close()

	r := gin.New()
	r.Use(c.Middleware(nil, "/analyze"))
	r.POST("/analyze", func(ctx *gin.Context) {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no data"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("")))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, c.Size())
}
