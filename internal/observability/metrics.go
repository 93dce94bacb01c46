package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphToggles counts follow toggles by resulting action.
	GraphToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_graph_toggles_total",
		Help: "Follow toggles by action (follow, unfollow)",
	}, []string{"action"})

	// LikeToggles counts like toggles by resulting action.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_like_toggles_total",
		Help: "Like toggles by action (like, unlike)",
	}, []string{"action"})

	// BatchCommits counts atomic batch commits by result.
	BatchCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_batch_commits_total",
		Help: "Atomic batch commits by result",
	}, []string{"result"})

	// BatchSize records the number of operations per committed batch.
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "localpulse_batch_ops",
		Help:    "Operations per atomic batch",
		Buckets: []float64{1, 2, 5, 10, 50, 100, 250, 500},
	})

	// NotificationsWritten counts notifications written by type.
	NotificationsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_notifications_written_total",
		Help: "Notifications written by type",
	}, []string{"type"})

	// FanOutChunks counts fan-out chunks by result.
	FanOutChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_fanout_chunks_total",
		Help: "Fan-out chunks by result (ok, failed)",
	}, []string{"result"})

	// ModerationChecks counts moderation outcomes.
	ModerationChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_moderation_checks_total",
		Help: "Moderation checks by outcome (safe, unsafe, unavailable)",
	}, []string{"outcome"})

	// ViewIncrementFailures counts swallowed view-counter failures.
	ViewIncrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localpulse_view_increment_failures_total",
		Help: "View increments that failed and were dropped",
	})

	// AssetCleanupFailures counts object-storage deletes that failed after a
	// store delete had committed.
	AssetCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localpulse_asset_cleanup_failures_total",
		Help: "Asset deletions that failed after the owning record was removed",
	})

	// RealtimePublishes counts live-topic publishes by result.
	RealtimePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_realtime_publishes_total",
		Help: "Live topic publishes by result",
	}, []string{"result"})

	// RedisErrors counts Redis command errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_redis_errors_total",
		Help: "Redis command errors",
	}, []string{"command"})

	// WebSocketConnections is the gauge of open WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "localpulse_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localpulse_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)
