// Package metrics holds the Prometheus collectors of the app.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes and results used as label values.
const (
	Processed = "processed"
	Failed    = "failed"

	Stored  = "stored"
	Skipped = "skipped"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	StudioImages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_images_total",
		Help: "Images handled by the batch pipeline, by outcome.",
	}, []string{"outcome"})

	HistoryRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_records_total",
		Help: "Artifact history recordings, by result.",
	}, []string{"result"})
)

// Middleware records request count and latency under the matched route
// pattern. Unmatched requests are grouped as "unmatched".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
