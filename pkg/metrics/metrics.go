package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testflow_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// InvitationsIssued counts invitation outcomes (added|invited).
	InvitationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testflow_invitations_issued_total",
			Help: "Total number of project invitations issued",
		},
		[]string{"outcome"},
	)

	// HistoryEntries counts test case history entries by action (created|updated|restored|deleted).
	HistoryEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testflow_history_entries_total",
			Help: "Total number of test case history entries written",
		},
		[]string{"action"},
	)

	// ActiveSessions tracks auth sessions that are not expired or revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "testflow_active_sessions",
			Help: "Number of active auth sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
