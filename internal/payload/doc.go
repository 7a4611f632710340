// Package payload is the structured-text codec used on the message path.
//
// Inbound payloads are validated and copied into the session arena by Parse;
// the resulting Document answers case-sensitive field lookups straight from
// arena memory. Outbound payloads are built with Encode, which serialises a
// flat object into a fixed-size buffer carved out of the same arena.
//
// A Document remembers the arena generation it was parsed under. Once the
// arena is reset every accessor returns ErrStaleDocument instead of reading
// memory that now belongs to the next message.
//
//	doc, err := payload.Parse(a, msg)
//	if err != nil {
//	    return err // ErrMalformed or arena.ErrNoMemory
//	}
//	action, err := doc.String("action")
//
// JSON handling is delegated to github.com/tidwall/gjson (validation and
// lookup) and github.com/tidwall/sjson (object construction).
package payload
