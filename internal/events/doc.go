// Package events carries session lifecycle and access gate activity off the
// device.
//
// Bridge publishes the current session to a retained MQTT topic, publishes
// every gate navigation as an event, and turns remote logout commands into
// Manager.Logout calls. Metrics writes the same activity, plus backend call
// latencies, to InfluxDB.
//
// Neither type ever sees a token or password.
package events
