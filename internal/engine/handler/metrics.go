package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
)

var (
	veritasRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	veritasRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veritas_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	veritasCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_callbacks_total",
		Help: "Total attestation completion callbacks by outcome.",
	}, []string{"outcome"})

	veritasCheckEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_check_evaluations_total",
		Help: "Total check evaluations by kind and result.",
	}, []string{"kind", "result"})

	veritasScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veritas_scores",
		Help:    "Distribution of accepted validation scores.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	veritasForwardingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_forwarding_total",
		Help: "Total reputation forwarding attempts by status.",
	}, []string{"status"})
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
			path = c.Request.URL.Path
		}

		veritasRequestsTotal.WithLabelValues(method, path, status).Inc()
		veritasRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCallback records one completion callback by outcome.
func RecordCallback(outcome string) {
	veritasCallbacksTotal.WithLabelValues(outcome).Inc()
}

// RecordCheckEvaluation records one check evaluation result.
func RecordCheckEvaluation(kind check.Kind, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	veritasCheckEvaluationsTotal.WithLabelValues(string(kind), result).Inc()
}

// ObserveScore records an accepted validation score.
func ObserveScore(score int) {
	veritasScores.Observe(float64(score))
}

// RecordForwarding records a reputation forwarding attempt.
func RecordForwarding(success bool) {
	if success {
		veritasForwardingTotal.WithLabelValues("success").Inc()
	} else {
		veritasForwardingTotal.WithLabelValues("failure").Inc()
	}
}
