package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livyctl",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total dispatched Livy requests.",
		},
		[]string{"method", "status"},
	)
	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "livyctl",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Dispatched Livy request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	clientRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livyctl",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Dispatcher retries by trigger.",
		},
		[]string{"method", "reason"},
	)
	clientPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livyctl",
			Subsystem: "client",
			Name:      "polls_total",
			Help:      "Lifecycle polls by resource and observed state.",
		},
		[]string{"resource", "state"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livyctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "livyctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			clientRequests,
			clientDuration,
			clientRetries,
			clientPolls,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordClientRequest records one dispatched attempt; status zero marks a
// network-level failure.
func RecordClientRequest(method string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	clientRequests.WithLabelValues(method, statusLabel).Inc()
	clientDuration.WithLabelValues(method, statusLabel).Observe(duration.Seconds())
}

func RecordClientRetry(method, reason string) {
	RegisterMetrics()
	clientRetries.WithLabelValues(method, reason).Inc()
}

func RecordPoll(resource, state string) {
	RegisterMetrics()
	clientPolls.WithLabelValues(resource, state).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
