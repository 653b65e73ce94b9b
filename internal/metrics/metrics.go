// Package metrics provides Prometheus instrumentation for GhostTalk. It
// exposes gauges for connection and room counts, counters for message
// throughput and moderation verdicts, and histograms for latency tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks the current number of active WebSocket connections.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ghosttalk_connections",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesTotal counts the total number of chat messages processed,
	// labeled by room kind and outcome.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghosttalk_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"room", "outcome"}) // room = "community", "private"; outcome = "delivered", "shadowed", "limited"

	// MessageLatency records message processing latency in seconds,
	// dominated by the moderation classify call.
	MessageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghosttalk_message_latency_seconds",
		Help:    "Message processing latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// ModerationVerdicts counts classification outcomes by category.
	ModerationVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghosttalk_moderation_verdicts_total",
		Help: "Total moderation classifications by category",
	}, []string{"category"}) // category = "ALLOWED", "BORDERLINE", "BLOCKED"

	// ActiveRooms tracks the current number of open private rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ghosttalk_active_rooms",
		Help: "Current number of open private rooms",
	})

	// CommunityResets counts community cycle resets, labeled by kind.
	CommunityResets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghosttalk_community_resets_total",
		Help: "Total community and site resets",
	}, []string{"kind"}) // kind = "community", "site"

	// RoomClosures counts private room closures by reason.
	RoomClosures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghosttalk_room_closures_total",
		Help: "Total private room closures by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ActiveConnections,
		MessagesTotal,
		MessageLatency,
		ModerationVerdicts,
		ActiveRooms,
		CommunityResets,
		RoomClosures,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
