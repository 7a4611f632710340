package payload

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/nerrad567/gray-logic-node/internal/arena"
)

// Document is a parsed JSON object living in arena memory.
//
// The zero value is not a valid document; every accessor on it reports
// ErrStaleDocument.
type Document struct {
	arena *arena.Arena
	gen   arena.Generation
	raw   []byte
}

// Parse validates data as a JSON object and copies it into the arena.
//
// Only the first len(data) bytes are considered; callers pass the exact
// payload slice delivered by the transport.
//
// Parameters:
//   - a: Arena to hold the document, normally freshly reset
//   - data: Raw payload bytes
//
// Returns:
//   - Document: Arena-backed document valid until the next a.Reset
//   - error: ErrMalformed, or arena.ErrNoMemory if the payload does not fit
func Parse(a *arena.Arena, data []byte) (Document, error) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Document{}, ErrMalformed
	}

	buf, err := a.Allocate(len(data))
	if err != nil {
		return Document{}, fmt.Errorf("payload: parse: %w", err)
	}
	copy(buf, data)

	return Document{arena: a, gen: a.Generation(), raw: buf}, nil
}

// Valid reports whether the backing arena still holds this document.
func (d Document) Valid() bool {
	return d.arena != nil && d.arena.Valid(d.gen)
}

// Raw returns the document bytes.
func (d Document) Raw() ([]byte, error) {
	if !d.Valid() {
		return nil, ErrStaleDocument
	}
	return d.raw, nil
}

// lookup finds the first top-level member whose key matches exactly.
func (d Document) lookup(key string) (gjson.Result, error) {
	if !d.Valid() {
		return gjson.Result{}, ErrStaleDocument
	}

	var found gjson.Result
	ok := false
	gjson.ParseBytes(d.raw).ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: %q", ErrFieldNotFound, key)
	}
	return found, nil
}

// String returns a string member. Lookup is case-sensitive.
//
// Returns:
//   - string: The member value
//   - error: ErrFieldNotFound, ErrFieldType, or ErrStaleDocument
func (d Document) String(key string) (string, error) {
	v, err := d.lookup(key)
	if err != nil {
		return "", err
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: %q is %s, want string", ErrFieldType, key, v.Type)
	}
	return v.Str, nil
}

// Int returns an integer member. Numeric strings such as "4" are accepted
// because control messages carry pin numbers as strings.
//
// Returns:
//   - int: The member value
//   - error: ErrFieldNotFound, ErrFieldType, or ErrStaleDocument
func (d Document) Int(key string) (int, error) {
	v, err := d.lookup(key)
	if err != nil {
		return 0, err
	}

	switch v.Type {
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrFieldType, key)
		}
		return int(v.Int()), nil
	case gjson.String:
		n, convErr := strconv.Atoi(v.Str)
		if convErr != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrFieldType, key, convErr)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %q is %s, want number", ErrFieldType, key, v.Type)
	}
}
