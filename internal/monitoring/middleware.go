package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records request metrics and logs every request.
// Routes are labelled by their pattern so path parameters do not explode cardinality.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordRequest(c.Request.Method, c.FullPath(), statusCode, duration)
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), statusCode, duration)

		if duration > 5*time.Second {
			logger.Warn("Slow request", "path", c.FullPath(), "duration_ms", duration.Milliseconds())
		}
	}
}
