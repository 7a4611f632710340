// Package arena provides the single-writer bump allocator that backs payload
// parsing and serialisation.
//
// An Arena hands out consecutive slices of one fixed buffer and reclaims all
// of them at once with Reset. Individual frees are not supported. Every
// Reset advances a generation counter; holders of arena memory record the
// generation they were allocated under and can detect a stale view with
// Valid.
//
// Thread Safety: Arena is not synchronised. It must only be used by one
// goroutine at a time, normally under the owning session's mutex.
package arena

import (
	"errors"
	"fmt"
)

// DefaultSize is the arena capacity used when none is configured.
const DefaultSize = 1024

// ErrNoMemory is returned when an allocation does not fit the remaining space.
var ErrNoMemory = errors.New("arena: out of memory")

// Generation identifies one reset cycle of an arena.
type Generation uint64

// Arena is a fixed buffer with a bump cursor.
type Arena struct {
	buf       []byte
	offset    int
	gen       Generation
	highWater int
}

// New creates an arena with the given capacity in bytes.
// A non-positive size falls back to DefaultSize.
func New(size int) *Arena {
	if size <= 0 {
		size = DefaultSize
	}
	return &Arena{buf: make([]byte, size)}
}

// Allocate returns n zeroed bytes from the arena and advances the cursor.
//
// The returned slice has its capacity clipped to n so appends cannot spill
// into the next allocation.
//
// Returns:
//   - []byte: Slice covering [offset, offset+n)
//   - error: ErrNoMemory if offset+n exceeds the capacity
func (a *Arena) Allocate(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("arena: negative allocation %d", n)
	}
	if a.offset+n > len(a.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, %d free", ErrNoMemory, n, len(a.buf)-a.offset)
	}

	start := a.offset
	a.offset += n
	if a.offset > a.highWater {
		a.highWater = a.offset
	}

	p := a.buf[start:a.offset:a.offset]
	clear(p)
	return p, nil
}

// Free is a no-op. Memory is reclaimed only by Reset.
func (a *Arena) Free([]byte) {}

// Reset rewinds the cursor to zero and starts a new generation.
// Slices handed out before the reset must not be read afterwards.
//
// Returns:
//   - Generation: The generation that allocations after this reset belong to
func (a *Arena) Reset() Generation {
	a.offset = 0
	a.gen++
	return a.gen
}

// Generation returns the current reset generation.
func (a *Arena) Generation() Generation {
	return a.gen
}

// Valid reports whether memory allocated under gen is still live.
func (a *Arena) Valid(gen Generation) bool {
	return a.gen == gen
}

// Offset returns the number of bytes allocated since the last reset.
func (a *Arena) Offset() int {
	return a.offset
}

// Cap returns the fixed capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// HighWater returns the largest offset reached since the arena was created.
func (a *Arena) HighWater() int {
	return a.highWater
}
