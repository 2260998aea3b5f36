package relay

import "errors"

var (
	// ErrUnknownCommand is returned for a command topic with no handler.
	ErrUnknownCommand = errors.New("relay: unknown command")

	// ErrInvalidCommand is returned when a command payload fails validation.
	ErrInvalidCommand = errors.New("relay: invalid command payload")

	// ErrNotRegistered is returned when a command names a device that is not registered.
	ErrNotRegistered = errors.New("relay: device not registered")
)
