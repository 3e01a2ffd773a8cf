package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAuthCalls         = "auth_calls"
	MeasurementGateRedirects     = "gate_redirects"
	MeasurementSessionTransition = "session_transitions"
)

// WriteAuthCall records one backend session call. op is login, register,
// me, profile or refresh; outcome is the error kind, "ok" on success.
//
//	client.WriteAuthCall("login", "invalid_credentials", 84*time.Millisecond)
func (c *Client) WriteAuthCall(op, outcome string, d time.Duration) {
	c.write(MeasurementAuthCalls,
		map[string]string{"op": op, "outcome": outcome},
		map[string]any{
			"duration_ms": float64(d.Microseconds()) / 1000,
			"count":       1,
		})
}

// WriteGateRedirect records a navigation issued by the access gate.
func (c *Client) WriteGateRedirect(rule, target string) {
	c.write(MeasurementGateRedirects,
		map[string]string{"rule": rule, "target": target},
		map[string]any{"count": 1})
}

// WriteSessionTransition records a settled session state.
func (c *Client) WriteSessionTransition(state, role string, version uint64) {
	c.write(MeasurementSessionTransition,
		map[string]string{"state": state, "role": role},
		map[string]any{"version": int64(version)}) // #nosec G115 -- versions stay far below MaxInt64
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
