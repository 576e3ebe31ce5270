package mqtt

import "errors"

// Sentinel errors returned by the client. Failures from the broker are
// wrapped, so compare with errors.Is.
var (
	// ErrNotConnected means the broker session is down. The host bus treats
	// it as a transient condition; paho keeps reconnecting in the background.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed wraps the reason the first CONNECT did not succeed.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidTopic rejects an empty topic or filter.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidQoS rejects anything above QoS 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrNilHandler rejects a subscription without a handler.
	ErrNilHandler = errors.New("mqtt: nil message handler")

	// ErrPayloadTooLarge rejects payloads over maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
