package payload

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/nerrad567/gray-logic-node/internal/arena"
)

// pathEscaper escapes characters that sjson treats as path syntax, so that
// keys are always written literally.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`:`, `\:`,
)

// Encode builds a flat JSON object of string members and serialises it into
// a fixed buffer of bufSize bytes allocated from the arena.
//
// The buffer reserves one byte for a terminator, so the serialised object
// may be at most bufSize-1 bytes long. Keys are written in order; a repeated
// key overwrites the earlier value.
//
// Parameters:
//   - a: Arena to allocate the output buffer from
//   - bufSize: Size of the output buffer including the terminator slot
//   - keys: Member names
//   - values: Member values, same length as keys
//
// Returns:
//   - []byte: The serialised object, exactly as long as its content
//   - error: ErrBufferTooSmall on overflow, ErrEncode or arena.ErrNoMemory otherwise
func Encode(a *arena.Arena, bufSize int, keys, values []string) ([]byte, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrEncode, len(keys), len(values))
	}

	obj := []byte("{}")
	for i, key := range keys {
		var err error
		obj, err = sjson.SetBytes(obj, pathEscaper.Replace(key), values[i])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrEncode, key, err)
		}
	}

	if len(obj) > bufSize-1 {
		return nil, fmt.Errorf("%w: %d bytes into %d byte buffer", ErrBufferTooSmall, len(obj), bufSize)
	}

	buf, err := a.Allocate(bufSize)
	if err != nil {
		return nil, fmt.Errorf("payload: encode: %w", err)
	}
	n := copy(buf, obj)
	return buf[:n:n], nil
}
