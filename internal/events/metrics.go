package events

import (
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// MetricsWriter is the time-series surface Metrics needs.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteAuthCall(op, outcome string, duration time.Duration)
	WriteGateRedirect(rule, target string)
	WriteSessionTransition(state, role string, version uint64)
}

// Metrics records session activity as time-series points.
type Metrics struct {
	w MetricsWriter
}

// NewMetrics creates a Metrics writing to w.
func NewMetrics(w MetricsWriter) *Metrics {
	return &Metrics{w: w}
}

// AuthObserver returns an authclient observer that records every backend call.
func (m *Metrics) AuthObserver() authclient.Observer {
	return m.w.WriteAuthCall
}

// SessionChanged records settled transitions.
func (m *Metrics) SessionChanged(snap session.Snapshot) {
	if snap.Loading {
		return
	}
	m.w.WriteSessionTransition(snap.State.String(), string(snap.Role), snap.Version)
}

// Redirected records a gate navigation.
func (m *Metrics) Redirected(d gate.Decision, _ string) {
	if d.Navigate {
		m.w.WriteGateRedirect(string(d.Rule), d.Target)
	}
}
