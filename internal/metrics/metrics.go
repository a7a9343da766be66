// Package metrics defines the service's Prometheus metrics. All metrics are
// registered via promauto at init and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket Metrics
var (
	// WebSocketConnectionsCurrent tracks current active WebSocket connections
	WebSocketConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Current number of active WebSocket connections",
		},
	)

	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/auth_failed/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketProtocolErrors tracks malformed or unknown inbound messages
	WebSocketProtocolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_protocol_errors_total",
			Help: "Total inbound messages dropped by reason (malformed/unknown_type)",
		},
		[]string{"reason"},
	)
)

// Hub / Fan-out Metrics
var (
	// HubConnectedClients tracks connections registered in the hub
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Number of connections currently registered in the hub",
		},
	)

	// HubSubscriptionsCurrent tracks total post subscriptions across connections
	HubSubscriptionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscriptions_current",
			Help: "Total post subscriptions across all connections",
		},
	)

	// HubSubscriptionsRejected tracks subscribes refused by the per-connection cap
	HubSubscriptionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_subscriptions_rejected_total",
			Help: "Subscribe requests refused by the per-connection subscription cap",
		},
	)

	// HubBroadcastsTotal tracks broadcasts by event type
	HubBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total broadcasts by event type (reaction_update/new_comment/user_typing)",
		},
		[]string{"event"},
	)

	// HubBroadcastRecipients tracks recipients attempted per broadcast
	HubBroadcastRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_broadcast_recipients",
			Help:    "Recipients attempted per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// HubMessagesDropped tracks sends skipped because a client buffer was full
	HubMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_messages_dropped_total",
			Help: "Broadcast sends skipped because the client send buffer was full",
		},
	)

	// HubSweepEvictions tracks connections evicted by the liveness sweep
	HubSweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_sweep_evictions_total",
			Help: "Connections evicted by the liveness sweep",
		},
	)

	// HubCommandChannelDepth tracks current command channel depth
	HubCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_command_channel_depth",
			Help: "Current hub command channel depth",
		},
	)

	// HubStopTimeoutsTotal tracks hub stops that exceeded timeout
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Hub stops that exceeded the shutdown timeout",
		},
	)

	// HubPanicsTotal tracks hub panic recoveries
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_panics_total",
			Help: "Total hub panic recoveries",
		},
	)
)

// Event Bridge Metrics
var (
	// BridgeEventsPublished tracks events published to Redis by type
	BridgeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_published_total",
			Help: "Engagement events published to the Redis bridge by type and status",
		},
		[]string{"event", "status"},
	)

	// BridgeEventsReceived tracks events received from other instances
	BridgeEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_received_total",
			Help: "Engagement events received from the Redis bridge by result (fanned_out/own_origin/malformed/unknown_type)",
		},
		[]string{"result"},
	)

	// BridgeSubscriptionActive tracks whether the bridge subscription is up
	BridgeSubscriptionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_subscription_active",
			Help: "1 if the Redis bridge subscription is active, 0 if disconnected",
		},
	)
)

// Redis Operations Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// HTTP Error Metrics
var (
	// HTTPErrorsTotal tracks HTTP errors surfaced by the error middleware
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
