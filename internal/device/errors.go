package device

import "errors"

// Sentinel errors returned by the device package.
var (
	// ErrUnknownModel is returned by Lookup for a tag missing from the
	// model table. The API answers it with 422.
	ErrUnknownModel = errors.New("device: unknown model")

	// ErrNoHost is returned when a live request is made to a device without an address.
	ErrNoHost = errors.New("device: no host")

	// ErrNoClient is returned when a live request is made without an HTTP client.
	ErrNoClient = errors.New("device: no http client")
)
