package mqtt

import "errors"

// Sentinel errors. Operation errors wrap one of these; compare with errors.Is.
var (
	ErrNotConnected      = errors.New("mqtt: not connected")
	ErrConnectionFailed  = errors.New("mqtt: connect failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic      = errors.New("mqtt: empty topic")

	// ErrTimeout is wrapped alongside the operation error when the broker
	// does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: broker did not acknowledge in time")
)
