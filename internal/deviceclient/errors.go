package deviceclient

import "errors"

// Sentinel errors for device HTTP requests.
var (
	// ErrUnauthorised is returned when the device rejects the credentials.
	ErrUnauthorised = errors.New("deviceclient: unauthorised")

	// ErrNotFound is returned when the device does not serve the requested path.
	ErrNotFound = errors.New("deviceclient: not found")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("deviceclient: unexpected status")

	// ErrInvalidHost is returned when the host is empty.
	ErrInvalidHost = errors.New("deviceclient: invalid host")
)
