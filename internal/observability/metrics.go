package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// Registry holds every gatewaysync collector; it is what /metrics and
	// the pushgateway expose.
	Registry = prometheus.NewRegistry()

	adminRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewaysync",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin API request attempts.",
		},
		[]string{"method", "resource", "status"},
	)
	adminDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gatewaysync",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin API request attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "resource", "status"},
	)
	adminRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewaysync",
			Subsystem: "admin",
			Name:      "retries_total",
			Help:      "Admin API retries scheduled after a transient failure.",
		},
		[]string{"method", "resource"},
	)
	reconcileChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewaysync",
			Subsystem: "reconcile",
			Name:      "changes_total",
			Help:      "Entity mutations applied by reconciliation.",
		},
		[]string{"kind", "action", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(adminRequests, adminDuration, adminRetries, reconcileChanges)
	})
}

// RecordAdminRequest records one attempt. status 0 means a network failure.
func RecordAdminRequest(method, resource string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	if status == 0 {
		statusLabel = "error"
	}
	adminRequests.WithLabelValues(method, resource, statusLabel).Inc()
	adminDuration.WithLabelValues(method, resource, statusLabel).Observe(duration.Seconds())
}

func RecordAdminRetry(method, resource string) {
	RegisterMetrics()
	adminRetries.WithLabelValues(method, resource).Inc()
}

func RecordChange(kind, action string, ok bool) {
	RegisterMetrics()
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	reconcileChanges.WithLabelValues(kind, action, outcome).Inc()
}
