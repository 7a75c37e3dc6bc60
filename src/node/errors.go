package node

import "errors"

var (
	// ErrAuthentication is returned when a broadcast fails authentication.
	ErrAuthentication = errors.New("broadcast authentication failed")

	// ErrStale is returned when an authentic broadcast is outdated.
	ErrStale = errors.New("broadcast is outdated")

	// ErrTransport wraps failures to send or receive on a connection.
	ErrTransport = errors.New("transport failure")

	// ErrInvalidInput is returned when an administrative request is missing
	// its argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyConnected is returned when an outbound connection to the
	// requested ip already exists.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrUnauthorized is returned when the caller lacks the privilege of an
	// administrative operation.
	ErrUnauthorized = errors.New("unauthorized")
)
