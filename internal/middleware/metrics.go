package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records one finished HTTP request.
type HTTPObserver interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if obs == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// Route templates keep the label set bounded; unmatched paths fall back to the raw path.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		obs.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
