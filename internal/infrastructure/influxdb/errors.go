package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled")

	ErrConnectionFailed = errors.New("influxdb: connect failed")
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrUnhealthy        = errors.New("influxdb: server reports unhealthy")

	// ErrWriteFailed wraps asynchronous batch failures passed to the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
