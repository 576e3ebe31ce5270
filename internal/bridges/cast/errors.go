package cast

import "errors"

// Domain errors for the cast package.
var (
	// ErrNotConnected is returned when a request is made without a session.
	ErrNotConnected = errors.New("cast: not connected")

	// ErrConnectionFailed is returned when the session cannot be opened.
	ErrConnectionFailed = errors.New("cast: connection failed")

	// ErrSessionClosed is returned to requests pending when the session ends.
	ErrSessionClosed = errors.New("cast: session closed")

	// ErrHeartbeatTimeout is reported when the receiver stops answering pings.
	ErrHeartbeatTimeout = errors.New("cast: heartbeat timeout")

	// ErrLaunchFailed is returned when the receiver refuses to launch an app.
	ErrLaunchFailed = errors.New("cast: launch failed")

	// ErrInvalidRequest is returned when the receiver rejects a request.
	ErrInvalidRequest = errors.New("cast: invalid request")

	// ErrInvalidMessage is returned when a CastMessage cannot be decoded.
	ErrInvalidMessage = errors.New("cast: invalid message")

	// ErrMessageTooLarge is returned for frames above the size limit.
	ErrMessageTooLarge = errors.New("cast: message too large")

	// ErrMessageEmpty is returned for zero-length frames.
	ErrMessageEmpty = errors.New("cast: message is empty")

	// ErrReceiverNotFound is returned when discovery finds no matching receiver.
	ErrReceiverNotFound = errors.New("cast: receiver not found")
)
