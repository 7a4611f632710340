package session

// State is the lifecycle state of a Session.
type State int32

// Session states.
const (
	StateUninitialized State = iota
	StateStarting
	StateConnected
	StateDisconnected
	StateStopping
	StateStopped
	StateFailed
)

// String returns the state name used in logs and diagnostics.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// live reports whether the session holds a table and transport.
func (s State) live() bool {
	return s == StateStarting || s == StateConnected || s == StateDisconnected
}
