package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coursebay/coursebay-api/internal/service"
)

// Metrics records request count and latency per route. Uses the route
// template, not the raw URL, to keep label cardinality bounded.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
