// Package metrics exposes this node's Prometheus collectors: one
// Registry and namespace shared by every metric family, modeled on the
// teacher's internal/metrics package (handshake.go/session.go/crypto.go,
// each a promauto.With(Registry) var block keyed off one namespace
// constant).
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "resonance"

// Registry is the Prometheus registry every collector in this package
// registers against.
var Registry = prometheus.NewRegistry()
