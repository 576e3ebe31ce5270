package hostbus

import "errors"

// Domain-specific errors for the host bus.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingDependency is returned by NewBridge when the accessory or the
	// MQTT client is nil.
	ErrMissingDependency = errors.New("hostbus: accessory and mqtt client are required")

	// ErrInvalidPayload is returned when a command message is not valid JSON.
	ErrInvalidPayload = errors.New("hostbus: invalid command payload")

	// ErrUnknownCommand is returned for command names the bridge does not handle.
	ErrUnknownCommand = errors.New("hostbus: unknown command")

	// ErrInvalidValue is returned when a command value has the wrong JSON type.
	ErrInvalidValue = errors.New("hostbus: invalid command value")

	// ErrStopped is returned by Start after Stop has been called.
	ErrStopped = errors.New("hostbus: bridge stopped")
)
