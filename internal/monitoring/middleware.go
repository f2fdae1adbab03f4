package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records metrics and a log line for each request
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordResponse(duration, status)
		if status >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, duration)
		for _, err := range c.Errors {
			logger.Error("Request Error",
				"path", c.Request.URL.Path,
				"status_code", status,
				"error", err.Error(),
			)
		}
	}
}
