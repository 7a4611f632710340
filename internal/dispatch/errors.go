package dispatch

import "errors"

// Domain errors for the dispatch table.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCapacity is returned when a table is created with a capacity
	// that is not a positive power of two.
	ErrInvalidCapacity = errors.New("dispatch: capacity must be a power of two")

	// ErrKeyTooLong is returned when a key does not fit the bounded key slot.
	ErrKeyTooLong = errors.New("dispatch: key too long")

	// ErrTableFull is returned when a new key cannot be placed because every
	// slot is occupied.
	ErrTableFull = errors.New("dispatch: table full")
)
