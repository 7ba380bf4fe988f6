// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the server's Prometheus collectors. A nil *Metrics is a
// valid no-op receiver so tests can pass nil without wiring a registry.
type Metrics struct {
	ceremonies         *prometheus.CounterVec
	counterRegressions prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ceremonies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbox_webauthn_ceremonies_total",
			Help: "WebAuthn ceremony outcomes by kind and result.",
		}, []string{"kind", "result"}),
		counterRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockbox_webauthn_counter_regressions_total",
			Help: "Assertions rejected because the signature counter did not advance.",
		}),
	}
	reg.MustRegister(m.ceremonies, m.counterRegressions)
	return m
}

// CeremonyResult records the outcome of a registration or authentication
// ceremony. kind is "registration" or "authentication".
func (m *Metrics) CeremonyResult(kind, result string) {
	if m == nil {
		return
	}
	m.ceremonies.WithLabelValues(kind, result).Inc()
}

// CounterRegression records a possible cloned-authenticator detection.
func (m *Metrics) CounterRegression() {
	if m == nil {
		return
	}
	m.counterRegressions.Inc()
}
