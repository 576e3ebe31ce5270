package samsung

import "errors"

// Domain errors for the Samsung remote package.
var (
	// ErrUnreachable is returned when the TV does not accept a connection.
	ErrUnreachable = errors.New("samsung: tv unreachable")

	// ErrAccessDenied is returned when the TV refuses the controller.
	ErrAccessDenied = errors.New("samsung: access denied")

	// ErrAuthPending is returned when the TV is still waiting for the user to
	// allow the controller on screen.
	ErrAuthPending = errors.New("samsung: waiting for user to allow remote")

	// ErrAuthTimeout is returned when the on-screen prompt timed out or was
	// cancelled.
	ErrAuthTimeout = errors.New("samsung: authorisation prompt timed out")

	// ErrInvalidFrame is returned when a frame from the TV is malformed.
	ErrInvalidFrame = errors.New("samsung: invalid frame")

	// ErrEmptyKey is returned when Send is called without a key.
	ErrEmptyKey = errors.New("samsung: empty key")
)
