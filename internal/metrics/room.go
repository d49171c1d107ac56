package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoomMembers tracks the current roster size of the active room.
	RoomMembers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "members",
			Help:      "Current number of members in the active room",
		},
	)

	// JoinRequestsReceived tracks admission requests by resolution.
	JoinRequestsReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "join_requests_total",
			Help:      "Total number of join requests received",
		},
		[]string{"status"}, // pending, approved, denied
	)

	// PeersDisconnected tracks member departures by reason.
	PeersDisconnected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "peers_disconnected_total",
			Help:      "Total number of peer disconnections by reason",
		},
		[]string{"reason"}, // phase1 purge reason, e.g. "ping timeout", "left", "repeated authentication failures"
	)
)
