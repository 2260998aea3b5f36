package journal

import "errors"

var (
	// ErrNoEvent is returned when recording an entry without an event name.
	ErrNoEvent = errors.New("journal: event is required")

	// ErrInvalidRetention is returned when pruning with a non-positive age.
	ErrInvalidRetention = errors.New("journal: retention must be positive")
)
