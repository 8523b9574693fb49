package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-exams/internal/service"
)

// unmatchedRoute labels requests that hit no registered route, keeping raw URLs out of the label set.
const unmatchedRoute = "unmatched"

// operationalRoutes are polled by scrapers and orchestrators and stay out of the request metrics.
var operationalRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records method, route template, status and latency of every API request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, skip := operationalRoutes[c.FullPath()]; skip {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
