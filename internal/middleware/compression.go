package middleware

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	// Level is a gzip level from 1 (fastest) to 9 (smallest).
	Level int
	// ExcludedPaths are served uncompressed, e.g. /health for probes.
	ExcludedPaths []string
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:         gzip.DefaultCompression,
		ExcludedPaths: []string{"/health"},
	}
}

// Compression gzips response bodies for clients that accept it.
type Compression struct {
	config CompressionConfig
	pool   sync.Pool

	total      int64
	compressed int64
}

// NewCompression creates a new compression middleware
func NewCompression(config CompressionConfig) *Compression {
	level := config.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	c := &Compression{config: config}
	c.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(nil, level)
		return gz
	}
	return c
}

// Handler returns the gin middleware
func (cm *Compression) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		atomic.AddInt64(&cm.total, 1)
		if !acceptsGzip(c.Request) || cm.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}
		atomic.AddInt64(&cm.compressed, 1)

		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)
		defer func() {
			_ = gz.Close()
			cm.pool.Put(gz)
		}()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, gz: gz}
		c.Next()
		c.Header("Content-Length", "")
	}
}

// Stats reports how many responses were compressed
func (cm *Compression) Stats() map[string]interface{} {
	return map[string]interface{}{
		"total_requests":      atomic.LoadInt64(&cm.total),
		"compressed_requests": atomic.LoadInt64(&cm.compressed),
	}
}

func (cm *Compression) excluded(path string) bool {
	for _, p := range cm.config.ExcludedPaths {
		if path == p {
			return true
		}
	}
	return false
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// gzipWriter routes body writes through the gzip stream
type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	w.Header().Del("Content-Length")
	return w.gz.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) Flush() {
	_ = w.gz.Flush()
	w.ResponseWriter.Flush()
}
