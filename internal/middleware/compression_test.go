package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cm *Compression) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	body := strings.Repeat("Answer sequence: 1 2 3 4 ", 50)
	r.GET("/report", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestCompressionGzipsWhenAccepted(t *testing.T) {
	cm := NewCompression(DefaultCompressionConfig())
	r := newRouter(cm)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), "Answer sequence: 1 2 3 4"))
	assert.Len(t, plain, 50*len("Answer sequence: 1 2 3 4 "))
}

func TestCompressionSkipsWithoutAcceptEncoding(t *testing.T) {
	r := newRouter(NewCompression(DefaultCompressionConfig()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report", nil))

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Answer sequence"))
}

func TestCompressionSkipsExcludedPaths(t *testing.T) {
	cm := NewCompression(DefaultCompressionConfig())
	r := newRouter(cm)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())
	assert.EqualValues(t, 0, cm.Stats()["compressed_requests"])
	assert.EqualValues(t, 1, cm.Stats()["total_requests"])
}
