package session

import "errors"

// Domain errors for session operations.
var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrNoTransport is returned by Start when the session has no transport.
	ErrNoTransport = errors.New("session: no transport")

	// ErrControlPrefixTooLong is returned by Start when the control prefix
	// leaves no room for the device name in a dispatch key.
	ErrControlPrefixTooLong = errors.New("session: control prefix too long")

	// ErrStopTimeout is returned by Stop when the transport did not shut down
	// within the stop timeout. The session is still stopped.
	ErrStopTimeout = errors.New("session: transport stop timed out")

	// ErrMissingField is returned by SendMultiple when a key or value is absent.
	ErrMissingField = errors.New("session: missing field")

	// ErrNotSubscribed is returned by Unsubscribe for unknown topics.
	ErrNotSubscribed = errors.New("session: topic not subscribed")

	// ErrNilHandler is returned by Subscribe when no handler is given.
	ErrNilHandler = errors.New("session: nil handler")

	// ErrUnknownAction is returned by the control handler for unsupported actions.
	ErrUnknownAction = errors.New("session: unknown control action")

	// ErrNoCollaborator is returned when a control action needs a GPIO
	// driver or OTA trigger that was not configured.
	ErrNoCollaborator = errors.New("session: collaborator not configured")
)
