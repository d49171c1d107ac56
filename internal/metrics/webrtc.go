package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PeerConnections tracks active Phase-2 connections by state.
	PeerConnections = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "webrtc",
			Name:      "peer_connections",
			Help:      "Current number of WebRTC peer connections by state",
		},
		[]string{"state"}, // new, connecting, connected, disconnected, failed, closed
	)

	// DataChannelMessages tracks data channel traffic.
	DataChannelMessages = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webrtc",
			Name:      "data_channel_messages_total",
			Help:      "Total number of data channel messages by direction",
		},
		[]string{"direction"}, // sent, received
	)

	// AudioPacketsReceived tracks inbound RTP packets by peer outcome.
	AudioPacketsReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webrtc",
			Name:      "audio_packets_total",
			Help:      "Total number of inbound audio RTP packets by outcome",
		},
		[]string{"outcome"}, // ok, depacketize_error
	)
)
