package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	clockActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftclock",
			Name:      "clock_actions_total",
			Help:      "Clock actions by outcome: online, offline, rejected, error.",
		},
		[]string{"outcome"},
	)

	syncAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftclock",
			Name:      "sync_attempts_total",
			Help:      "Per-entry sync attempts by result.",
		},
		[]string{"result"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shiftclock",
			Name:      "queue_depth",
			Help:      "Punches currently waiting for delivery.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftclock",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(clockActions, syncAttempts, queueDepth, httpRequests)
	})
}

// IncClockAction counts one punch attempt by outcome.
func IncClockAction(outcome string) {
	clockActions.WithLabelValues(outcome).Inc()
}

// IncSyncAttempt counts one per-entry delivery attempt by result.
func IncSyncAttempt(result string) {
	syncAttempts.WithLabelValues(result).Inc()
}

// SetQueueDepth records the current queue size.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
