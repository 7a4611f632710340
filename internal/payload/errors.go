package payload

import "errors"

// Domain errors for payload parsing and encoding.
var (
	// ErrMalformed is returned when inbound bytes are not a JSON object.
	ErrMalformed = errors.New("payload: malformed JSON object")

	// ErrStaleDocument is returned when a Document is read after the arena
	// that backs it was reset.
	ErrStaleDocument = errors.New("payload: document used after arena reset")

	// ErrFieldNotFound is returned when a looked-up key is absent.
	ErrFieldNotFound = errors.New("payload: field not found")

	// ErrFieldType is returned when a field exists but has the wrong type.
	ErrFieldType = errors.New("payload: field has wrong type")

	// ErrBufferTooSmall is returned when a serialised object does not fit the
	// output buffer.
	ErrBufferTooSmall = errors.New("payload: output buffer too small")

	// ErrEncode is returned when an object cannot be built.
	ErrEncode = errors.New("payload: encode failed")
)
