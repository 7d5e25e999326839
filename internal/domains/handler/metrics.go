package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cdpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	cdpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cdp_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	cdpProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_provider_requests_total",
		Help: "Total provisioning provider API calls by operation and result.",
	}, []string{"operation", "result"})

	cdpReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_reconcile_total",
		Help: "Total add-domain requests by outcome.",
	}, []string{"outcome"})

	cdpReadinessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdp_readiness_checks_total",
		Help: "Total readiness probes by result.",
	}, []string{"result"})

	cdpMockMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cdp_mock_mode",
		Help: "1 when no provisioning provider is configured.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		cdpRequestsTotal.WithLabelValues(method, path, status).Inc()
		cdpRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordProviderRequest records one provider API call. Its signature matches
// cloudflare.RequestRecorder.
func RecordProviderRequest(op string, success bool) {
	cdpProviderRequestsTotal.WithLabelValues(op, result(success)).Inc()
}

// RecordReconcile records the outcome of one add-domain request.
func RecordReconcile(outcome string) {
	cdpReconcileTotal.WithLabelValues(outcome).Inc()
}

// RecordReadinessCheck records a readiness probe result.
func RecordReadinessCheck(success bool) {
	cdpReadinessChecksTotal.WithLabelValues(result(success)).Inc()
}

// SetMockMode exports whether the service runs without a provider.
func SetMockMode(on bool) {
	if on {
		cdpMockMode.Set(1)
	} else {
		cdpMockMode.Set(0)
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
