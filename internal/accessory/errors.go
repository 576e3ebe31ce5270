package accessory

import (
	"errors"
	"fmt"
)

// Domain errors for the accessory core.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned by SessionedLink operations attempted while
	// the link is not in the Connected state. No I/O is performed.
	ErrNotConnected = errors.New("accessory: secondary device not connected")

	// ErrConnectInProgress is returned when Connect is called while another
	// connect attempt is still in flight.
	ErrConnectInProgress = errors.New("accessory: connect already in progress")

	// ErrConnectFailed wraps the transport error of a failed connect attempt.
	ErrConnectFailed = errors.New("accessory: connect failed")

	// ErrLaunchFailed wraps the transport error of a failed receiver launch.
	ErrLaunchFailed = errors.New("accessory: launch failed")

	// ErrBusy is returned when a key sequence is requested while another
	// sequence holds the guard. The request is rejected, never queued.
	ErrBusy = errors.New("accessory: key sequence already in progress")

	// ErrValidation is the parent of all request validation failures.
	ErrValidation = errors.New("accessory: invalid request")

	// ErrInvalidChannel is returned for channel strings that are not an
	// integer in [1, 9999].
	ErrInvalidChannel = fmt.Errorf("%w: channel must be a number between %d and %d", ErrValidation, MinChannel, MaxChannel)

	// ErrInvalidVolume is returned for absolute volume requests outside 0-100.
	ErrInvalidVolume = fmt.Errorf("%w: volume must be between 0 and 100", ErrValidation)

	// ErrInvalidVolumeStep is returned for relative volume steps outside the
	// supported range.
	ErrInvalidVolumeStep = fmt.Errorf("%w: volume step must be between %d and %d", ErrValidation, MinVolumeStep, MaxVolumeStep)

	// ErrInvalidKey is returned for empty named keys.
	ErrInvalidKey = fmt.Errorf("%w: key name cannot be empty", ErrValidation)

	// ErrEmptySequence is returned when a KeySequence contains no keys.
	ErrEmptySequence = fmt.Errorf("%w: key sequence is empty", ErrValidation)

	// ErrTickTimeout is reported when a reconciliation tick's queries did not
	// all complete before the tick deadline.
	ErrTickTimeout = errors.New("accessory: state poll deadline exceeded")
)

// TransportError reports a network or protocol failure from a device.
// The underlying cause is available through errors.Unwrap.
type TransportError struct {
	// Device is the role of the failing device ("primary" or "secondary").
	Device string

	// Op is the operation that failed (e.g. "send_key", "get_volume").
	Op string

	// Key is the key identifier for send_key failures.
	Key string

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("accessory: %s %s %s: %v", e.Device, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("accessory: %s %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
