package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBPoolConnections is sampled from pgxpool stats; state is one of
	// acquired, idle, total or max.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskforge_db_pool_connections",
			Help: "Connections in the taskforge database pool by state",
		},
		[]string{"state"},
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskforge_db_query_duration_seconds",
			Help:    "Duration of taskforge queries in seconds by table and operation",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"table", "operation"},
	)

	// DBQueryErrors counts failed queries by SQLSTATE class ("08", "23", ...),
	// or "driver" when the error did not come from the server.
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_db_query_errors_total",
			Help: "Failed taskforge queries by table and SQLSTATE class",
		},
		[]string{"table", "sqlstate_class"},
	)

	DBCircuitBreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskforge_db_circuit_breaker_open",
			Help: "1 while the named database circuit breaker rejects calls",
		},
		[]string{"breaker"},
	)

	DBCircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_db_circuit_breaker_failures_total",
			Help: "Database failures counted towards opening the named breaker",
		},
		[]string{"breaker"},
	)

	DBCircuitBreakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskforge_db_circuit_breaker_rejected_total",
			Help: "Calls rejected while the named breaker was open",
		},
		[]string{"breaker"},
	)
)
