package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

// Metrics records request count and latency per route template, so
// /listings/abc/statements/2024/3 and /listings/xyz/statements/2024/4 share
// one series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		done := metrics.HTTPRequestStarted()
		defer done()

		c.Next()

		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
