package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket Connection Metrics
var (
	// ConnectionsCurrent tracks currently registered connections by client type
	ConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections_current",
			Help: "Currently registered WebSocket connections by client type",
		},
		[]string{"client_type"},
	)

	// ConnectionsTotal tracks accepted connections by client type
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_connections_total",
			Help: "Total accepted WebSocket connections by client type",
		},
		[]string{"client_type"},
	)

	// ConnectionsRejectedTotal tracks connections rejected at capacity
	ConnectionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_connections_rejected_total",
			Help: "Connections rejected because the registry was at capacity",
		},
	)

	// DisconnectsTotal tracks unregistered connections by reason
	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_disconnects_total",
			Help: "Connections removed from the registry by reason",
		},
		[]string{"reason"},
	)

	// MessagesDroppedTotal tracks inbound messages dropped at the boundary
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_dropped_total",
			Help: "Inbound messages dropped by cause (throttled, oversized, malformed)",
		},
		[]string{"cause"},
	)

	// HeartbeatEvictionsTotal tracks connections evicted by the heartbeat monitor
	HeartbeatEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_heartbeat_evictions_total",
			Help: "Connections evicted after missing a heartbeat acknowledgment",
		},
	)
)

// Broadcast Metrics
var (
	// BroadcastsTotal tracks broadcast calls
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_calls_total",
			Help: "Total broadcast calls",
		},
	)

	// BroadcastSendsTotal tracks per-connection send outcomes during broadcasts
	BroadcastSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Per-connection broadcast send outcomes",
		},
		[]string{"status"},
	)

	// BroadcastDuration tracks broadcast fan-out latency in seconds
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Broadcast fan-out duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// Redemption Poller Metrics
var (
	// PollCyclesTotal tracks poll cycles by status
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_poll_cycles_total",
			Help: "Redemption poll cycles by status",
		},
		[]string{"status"},
	)

	// PollDuration tracks poll cycle latency in seconds
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "points_poll_duration_seconds",
			Help:    "Redemption poll cycle duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// RedemptionsProcessedTotal tracks redemptions that produced a domain event
	RedemptionsProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_redemptions_processed_total",
			Help: "Redemptions that produced a domain event",
		},
	)

	// RedemptionsDedupedTotal tracks redemptions skipped by the seen-set
	RedemptionsDedupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_redemptions_deduped_total",
			Help: "Redemptions skipped because they were already processed",
		},
	)

	// DedupSetSize tracks the current seen-set size
	DedupSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "points_dedup_set_size",
			Help: "Current size of the redemption seen-set",
		},
	)

	// EffectsTriggeredTotal tracks effects sent to the overlay by effect id
	EffectsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "effects_triggered_total",
			Help: "Effects broadcast to overlay clients by effect id and source",
		},
		[]string{"effect", "source"},
	)
)
