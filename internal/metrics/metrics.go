// Package metrics exposes the engine's Prometheus instrumentation: active
// sessions, dropped/replayed datagrams, forwarded bytes, and blacklisted
// peers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the engine's collectors. It is safe to register against
// any prometheus.Registerer, including prometheus.NewRegistry() in tests.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	BlacklistedPeers    prometheus.Gauge
	MalformedDropped    prometheus.Counter
	ReplayDropped       prometheus.Counter
	PolicyRejected      *prometheus.CounterVec
	BytesForwarded      *prometheus.CounterVec
	HelloTimeouts       prometheus.Counter
	Rekeys              prometheus.Counter
}

// New constructs a Metrics bundle and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fscp",
			Name:      "active_sessions",
			Help:      "Number of peer sessions currently active.",
		}),
		BlacklistedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fscp",
			Name:      "blacklisted_peers",
			Help:      "Number of peers currently in a handshake-failure cooldown.",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "malformed_datagrams_dropped_total",
			Help:      "Datagrams dropped for failing frame/body validation.",
		}),
		ReplayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "replay_dropped_total",
			Help:      "Data packets dropped by the replay window.",
		}),
		PolicyRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "policy_rejected_total",
			Help:      "Presentations or sessions rejected by policy, labeled by sub-kind.",
		}, []string{"reason"}),
		BytesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "bytes_forwarded_total",
			Help:      "Bytes forwarded between TAP and peers, labeled by direction.",
		}, []string{"direction"}),
		HelloTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "hello_timeouts_total",
			Help:      "HELLO_REQUEST exchanges that exhausted their retry budget.",
		}),
		Rekeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fscp",
			Name:      "rekeys_total",
			Help:      "Session renegotiations, whether policy- or exhaustion-triggered.",
		}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.BlacklistedPeers,
		m.MalformedDropped,
		m.ReplayDropped,
		m.PolicyRejected,
		m.BytesForwarded,
		m.HelloTimeouts,
		m.Rekeys,
	)
	return m
}
