// =============================================================================
// pkg/metrics/metrics.go - Prometheus Collectors
// =============================================================================
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StreamRequestsTotal counts answered stream requests by status code.
	StreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seedstream",
		Name:      "stream_requests_total",
		Help:      "Total stream requests by response status code.",
	}, []string{"status"})

	// StreamBytesTotal counts body bytes sent to clients.
	StreamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "seedstream",
		Name:      "stream_bytes_total",
		Help:      "Total body bytes written to stream clients.",
	})

	// ActiveConnections is the number of connections held by workers.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "seedstream",
		Name:      "active_connections",
		Help:      "Number of client connections currently being served.",
	})

	// ActiveSessions is the number of registered sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "seedstream",
		Name:      "active_sessions",
		Help:      "Number of registered torrent sessions.",
	})

	// FileProgress is the selected file's progress, labelled by session.
	FileProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "seedstream",
		Name:      "file_progress_ratio",
		Help:      "Piece based progress of the selected file per session.",
	}, []string{"session"})

	// EngineErrorsTotal counts errors surfaced as notifications.
	EngineErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "seedstream",
		Name:      "engine_errors_total",
		Help:      "Total number of engine errors surfaced to consumers.",
	})
)

// Register adds every collector to reg. It panics on duplicate registration.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		StreamRequestsTotal,
		StreamBytesTotal,
		ActiveConnections,
		ActiveSessions,
		FileProgress,
		EngineErrorsTotal,
	)
}
