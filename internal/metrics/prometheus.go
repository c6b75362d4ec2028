package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// Provider API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_api_calls_total",
			Help: "Total number of BallDontLie API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hoopstats_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_api_retries_total",
			Help: "Total number of retried API calls by reason",
		},
		[]string{"endpoint", "reason"},
	)

	ProviderCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_provider_circuit_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hoopstats_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_sync_operations_total",
			Help: "Total number of sync runs",
		},
		[]string{"mode", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hoopstats_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"mode"},
	)

	SyncRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hoopstats_sync_rejected_total",
			Help: "Total number of sync requests rejected because a run was in progress",
		},
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_sync_in_progress",
			Help: "1 while a sync run is executing",
		},
	)

	GamesUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hoopstats_games_upserted_total",
			Help: "Total number of games written by sync runs",
		},
	)

	StatLinesUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hoopstats_stat_lines_upserted_total",
			Help: "Total number of player stat lines written by sync runs",
		},
	)

	GamesFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hoopstats_games_failed_total",
			Help: "Total number of games that failed during sync runs",
		},
	)

	// Analytics metrics
	AnalyticsQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_analytics_queries_total",
			Help: "Total number of analytics queries",
		},
		[]string{"kind", "status"},
	)

	AnalyticsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hoopstats_analytics_query_duration_seconds",
			Help:    "Duration of analytics queries in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoopstats_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hoopstats_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync run",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordAPIRetry records a retried API call
func RecordAPIRetry(endpoint, reason string) {
	APIRetriesTotal.WithLabelValues(endpoint, reason).Inc()
}

// SetCircuitState records the provider circuit breaker state
func SetCircuitState(state int) {
	ProviderCircuitState.Set(float64(state))
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordSync records a completed sync run
func RecordSync(mode, status string, duration float64, gamesUpserted, statLines, gamesFailed int) {
	SyncOperationsTotal.WithLabelValues(mode, status).Inc()
	SyncDuration.WithLabelValues(mode).Observe(duration)
	GamesUpsertedTotal.Add(float64(gamesUpserted))
	StatLinesUpsertedTotal.Add(float64(statLines))
	GamesFailedTotal.Add(float64(gamesFailed))

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordSyncRejected records a sync request turned away by the run lock
func RecordSyncRejected() {
	SyncRejectedTotal.Inc()
}

// SetSyncInProgress flags whether a run currently holds the lock
func SetSyncInProgress(running bool) {
	if running {
		SyncInProgress.Set(1)
		return
	}
	SyncInProgress.Set(0)
}

// RecordAnalyticsQuery records an analytics query
func RecordAnalyticsQuery(kind, status string, duration float64) {
	AnalyticsQueriesTotal.WithLabelValues(kind, status).Inc()
	AnalyticsQueryDuration.WithLabelValues(kind).Observe(duration)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
