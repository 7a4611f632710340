package dispatch

import "fmt"

// Table constants.
const (
	// DefaultCapacity is the slot count used by sessions unless configured.
	DefaultCapacity = 8

	// MaxKeyLength is the size of a key slot including its terminator, so
	// the longest accepted key is MaxKeyLength-1 bytes.
	MaxKeyLength = 32

	// hashSeed replaces the standard FNV offset basis.
	hashSeed uint32 = 0x12345678

	// fnvPrime is the 32-bit FNV prime.
	fnvPrime uint32 = 0x01000193
)

// slotState tracks whether a slot holds a live entry.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotDeleted
)

// entry is one slot of the backing array.
type entry[V any] struct {
	key   string
	value V
	state slotState
}

// Table is a fixed-capacity open-addressed map from topic keys to values.
//
// The zero value is not usable; create tables with NewTable.
type Table[V any] struct {
	entries    []entry[V]
	mask       uint32
	size       int
	collisions int
}

// NewTable creates an empty table with the given number of slots.
//
// Parameters:
//   - capacity: Slot count, must be a positive power of two
//
// Returns:
//   - *Table[V]: Empty table
//   - error: ErrInvalidCapacity if capacity is not a power of two
func NewTable[V any](capacity int) (*Table[V], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Table[V]{
		entries: make([]entry[V], capacity),
		mask:    uint32(capacity - 1), //nolint:gosec // capacity validated positive above
	}, nil
}

// hashKey is FNV-1a over the key bytes, starting from hashSeed.
func hashKey(key string) uint32 {
	h := hashSeed
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime
	}
	return h
}

// probe walks the probe sequence for key.
//
// It returns the index of the matching slot (found=true), or the index where
// the key should be inserted: the first tombstone on the path if any,
// otherwise the empty slot that ended the walk. insertAt is -1 when the walk
// wrapped without finding any reusable slot.
func (t *Table[V]) probe(key string) (index int, found bool, insertAt int) {
	start := hashKey(key) & t.mask
	idx := start
	insertAt = -1

	for {
		e := &t.entries[idx]
		switch e.state {
		case slotEmpty:
			if insertAt < 0 {
				insertAt = int(idx)
			}
			return -1, false, insertAt
		case slotDeleted:
			if insertAt < 0 {
				insertAt = int(idx)
			}
		case slotOccupied:
			if e.key == key {
				return int(idx), true, insertAt
			}
		}

		idx = (idx + 1) & t.mask
		if idx == start {
			return -1, false, insertAt
		}
	}
}

// Put inserts key or overwrites its value if already present.
//
// Updating an existing key always succeeds, even when the table is full.
//
// Returns:
//   - error: ErrKeyTooLong or ErrTableFull, nil on success
func (t *Table[V]) Put(key string, value V) error {
	if len(key) >= MaxKeyLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrKeyTooLong, len(key), MaxKeyLength-1)
	}

	idx, found, insertAt := t.probe(key)
	if found {
		t.entries[idx].value = value
		return nil
	}

	if t.size >= len(t.entries) || insertAt < 0 {
		return ErrTableFull
	}

	if uint32(insertAt) != hashKey(key)&t.mask { //nolint:gosec // insertAt is a valid slot index
		t.collisions++
	}

	t.entries[insertAt] = entry[V]{key: key, value: value, state: slotOccupied}
	t.size++
	return nil
}

// Get returns the value stored for key.
// The boolean is false when the key is not present.
func (t *Table[V]) Get(key string) (V, bool) {
	idx, found, _ := t.probe(key)
	if !found {
		var zero V
		return zero, false
	}
	return t.entries[idx].value, true
}

// Remove deletes key from the table.
//
// The slot becomes a tombstone so that keys placed further along the same
// probe chain stay reachable. A run of tombstones that ends at an empty slot
// is folded back to empty, since no chain can pass through it any more.
//
// Returns:
//   - bool: true if the key was present
func (t *Table[V]) Remove(key string) bool {
	idx, found, _ := t.probe(key)
	if !found {
		return false
	}

	t.entries[idx] = entry[V]{state: slotDeleted}
	t.size--

	next := (uint32(idx) + 1) & t.mask //nolint:gosec // idx is a valid slot index
	if t.entries[next].state != slotEmpty {
		return true
	}

	cur := uint32(idx) //nolint:gosec // idx is a valid slot index
	for range t.entries {
		if t.entries[cur].state != slotDeleted {
			break
		}
		t.entries[cur].state = slotEmpty
		cur = (cur - 1) & t.mask
	}
	return true
}

// Size returns the number of live entries.
func (t *Table[V]) Size() int {
	return t.size
}

// Capacity returns the fixed slot count.
func (t *Table[V]) Capacity() int {
	return len(t.entries)
}

// Collisions returns how many inserts landed away from their home slot.
func (t *Table[V]) Collisions() int {
	return t.collisions
}

// Keys returns the live keys in slot order.
func (t *Table[V]) Keys() []string {
	keys := make([]string, 0, t.size)
	for i := range t.entries {
		if t.entries[i].state == slotOccupied {
			keys = append(keys, t.entries[i].key)
		}
	}
	return keys
}
