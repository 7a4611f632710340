// Package dispatch provides the fixed-capacity topic table used to route
// inbound MQTT messages to their handlers.
//
// The table is an open-addressed hash map over a fixed backing array. It
// never grows: capacity is chosen once (a power of two, default 8) and a
// full table rejects new keys rather than reallocating.
//
// # Layout
//
//   - Keys are bounded strings (at most MaxKeyLength-1 bytes)
//   - Hashing is FNV-1a with a fixed seed, reduced with a bit mask
//   - Collisions are resolved by linear probing
//   - Removed slots become tombstones so later lookups keep probing past them
//
// # Usage
//
//	table, err := dispatch.NewTable[Handler](dispatch.DefaultCapacity)
//	if err != nil {
//	    return err
//	}
//	if err := table.Put("control/node-01", handler); err != nil {
//	    return err
//	}
//	h, ok := table.Get("control/node-01")
//
// Thread Safety: Table is not synchronised. The owning session serialises
// every access under its own mutex.
package dispatch
