package mqtt

import "errors"

// Domain errors for MQTT operations.
var (
	// ErrNotConnected is returned for operations that need a live connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrNotStarted is returned before Start or after Destroy.
	ErrNotStarted = errors.New("mqtt: client not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("mqtt: client already started")

	// ErrPublishFailed is returned when a publish is rejected or times out.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPayloadTooLarge is returned when a payload exceeds the outbound buffer.
	ErrPayloadTooLarge = errors.New("mqtt: payload exceeds outbound buffer")

	// ErrSubscribeFailed is returned when a subscribe is rejected or times out.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe is rejected or times out.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for empty topics.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
