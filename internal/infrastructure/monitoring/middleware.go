package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection.
func Middleware(metrics *ServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		// Label by route template, not the raw URL, so every hash does
		// not become its own time series.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures one lookup from probe to answer.
type Timer struct {
	start   time.Time
	metrics *ServerMetrics
	corpus  string
}

// NewTimer starts timing a lookup against the named corpus.
func NewTimer(metrics *ServerMetrics, corpus string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, corpus: corpus}
}

// Stop records the lookup with its outcome. A Timer with nil metrics
// is a no-op, which keeps handlers free of guards.
func (t *Timer) Stop(found bool) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordLookup(t.corpus, found, time.Since(t.start))
}
