package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipsum_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snipsum_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snipsum_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	summarizeChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snipsum_summarize_chunks",
			Help:    "Number of chunks a summarized selection was split into",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
)

// metricsPath buckets unknown paths so a URL scan cannot blow up label
// cardinality.
func metricsPath(path string) string {
	switch path {
	case "/summarize", "/health", "/metrics":
		return path
	default:
		return "other"
	}
}

func observeRequest(method, path string, status int, duration time.Duration) {
	path = metricsPath(path)
	requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
