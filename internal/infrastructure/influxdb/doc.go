// Package influxdb provides InfluxDB connectivity for EV Market Web.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring.
//
// # Measurements
//
//   - auth_calls: one point per backend session call (op, outcome, duration_ms)
//   - gate_redirects: one point per access gate navigation (rule, target)
//   - session_transitions: one point per settled session state (state, role)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.App.DeviceID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthCall("login", "ok", elapsed)
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
