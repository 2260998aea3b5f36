package mqtt

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotConnected means the broker connection is down; the relay logs
	// and drops the message rather than queueing it.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the cause of a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps publish failures, including oversized and
	// unencodable payloads.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps failures subscribing to command topics.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrTimeout is joined with the operation error when the broker does
	// not acknowledge in time.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrInvalidQoS means a QoS other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic means an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
