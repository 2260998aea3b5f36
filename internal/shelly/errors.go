package shelly

import "errors"

// Sentinel errors for the registry aggregate.
var (
	// ErrNoListener is returned by New when Options.Listener is nil.
	ErrNoListener = errors.New("shelly: listener is required")

	// ErrNoFactory is returned by New when Options.Factory is nil.
	ErrNoFactory = errors.New("shelly: device factory is required")

	// ErrNilDevice is returned by Add and Remove when given a nil device.
	ErrNilDevice = errors.New("shelly: nil device")

	// ErrClosed is returned by operations on a closed Shellies.
	ErrClosed = errors.New("shelly: closed")
)
