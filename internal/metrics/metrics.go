package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token verification metrics
var (
	// AuthVerificationsTotal tracks token verifications by outcome
	AuthVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_verifications_total",
			Help: "Total bearer token verifications by outcome",
		},
		[]string{"outcome"},
	)

	// KeyCacheRefreshesTotal tracks signing key set refreshes by status
	KeyCacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_cache_refreshes_total",
			Help: "Total signing key set refreshes by status",
		},
		[]string{"status"},
	)

	// KeyCacheResolutionsTotal tracks key id lookups by result (hit/miss)
	KeyCacheResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_cache_resolutions_total",
			Help: "Total key id resolutions by result",
		},
		[]string{"result"},
	)
)

// Connection registry metrics
var (
	// RegistryOpsTotal tracks registry operations by operation and status
	RegistryOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_operations_total",
			Help: "Total connection registry operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// WebSocketConnectedClients tracks currently connected in-process clients
	WebSocketConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total rejected WebSocket connection attempts by reason",
		},
		[]string{"reason"},
	)
)

// Broadcast metrics
var (
	// BroadcastsTotal tracks broadcast fan-out calls
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total broadcast fan-out calls",
		},
	)

	// BroadcastDeliveriesTotal tracks per-recipient delivery attempts by status
	BroadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Total per-recipient delivery attempts by status",
		},
		[]string{"status"},
	)

	// BroadcastPrunedConnections tracks connections removed after failed delivery
	BroadcastPrunedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_pruned_connections_total",
			Help: "Total connections pruned after failed delivery",
		},
	)

	// BroadcastDuration tracks full fan-out duration in seconds
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Broadcast fan-out duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// BroadcastsSkippedTotal tracks triggers skipped by reason (below threshold, auth failure)
	BroadcastsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_skipped_total",
			Help: "Total broadcast triggers skipped by reason",
		},
		[]string{"reason"},
	)
)

// Database metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query name",
		},
		[]string{"query"},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks Redis commands by operation and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by command and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis command duration in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks failed Redis connection attempts
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total failed Redis connection attempts",
		},
	)
)

// Score metrics
var (
	// ScoreSubmissionsTotal tracks score submissions by status
	ScoreSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_submissions_total",
			Help: "Total score submissions by status",
		},
		[]string{"status"},
	)
)
