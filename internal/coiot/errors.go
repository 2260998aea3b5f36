package coiot

import "errors"

// Sentinel errors for CoIoT decoding and listening.
var (
	// ErrMessageTooShort is returned when a datagram is shorter than a CoAP header.
	ErrMessageTooShort = errors.New("coiot: message too short")

	// ErrUnsupportedVersion is returned for CoAP versions other than 1.
	ErrUnsupportedVersion = errors.New("coiot: unsupported CoAP version")

	// ErrMalformedOption is returned when an option header or value is truncated or reserved.
	ErrMalformedOption = errors.New("coiot: malformed option")

	// ErrMissingDeviceID is returned when a status message lacks the global device ID option.
	ErrMissingDeviceID = errors.New("coiot: missing device id option")

	// ErrInvalidDeviceID is returned when the global device ID option cannot be split.
	ErrInvalidDeviceID = errors.New("coiot: invalid device id option")

	// ErrInvalidPayload is returned when the JSON payload cannot be decoded.
	ErrInvalidPayload = errors.New("coiot: invalid payload")

	// ErrNoMulticastInterface is returned when no interface could join the multicast group.
	ErrNoMulticastInterface = errors.New("coiot: no interface joined the multicast group")
)
