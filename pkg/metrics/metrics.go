package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_received_total",
		Help: "The total number of messages received from clients.",
	}, []string{"type"})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_sent_total",
		Help: "The total number of messages sent to clients.",
	})
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_messages_dropped_total",
		Help: "The total number of outbound messages dropped (peer offline or send buffer full).",
	})

	// Matchmaking metrics
	MatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaking_matches_created_total",
		Help: "The total number of sessions created by the matchmaking scheduler.",
	}, []string{"mode"})
	QueueJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaking_queue_joins_total",
		Help: "The total number of queue join requests accepted.",
	}, []string{"mode"})
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchmaking_tick_duration_seconds",
		Help:    "Duration of one matchmaking pairing pass.",
		Buckets: prometheus.DefBuckets,
	})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_success_total",
		Help: "The total number of successful authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "The total number of failed authentications.",
	}, []string{"reason"})
)
