package session

import (
	"sync/atomic"
	"time"
)

// Outcome classifies how a data event ended.
type Outcome string

// Data event outcomes.
const (
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeHandlerError Outcome = "handler_error"
	OutcomeUnmatched    Outcome = "unmatched"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeOversize     Outcome = "oversize"
	OutcomeDropped      Outcome = "dropped"
)

// Record describes one processed data event.
type Record struct {
	Device   string
	Topic    string
	Outcome  Outcome
	Bytes    int
	Duration time.Duration
}

// Recorder receives data event records. It is called with the session lock
// held and must not block.
type Recorder interface {
	RecordDispatch(rec Record)
}

// Stats is a snapshot of session counters.
type Stats struct {
	State          string `json:"state"`
	Dispatched     uint64 `json:"dispatched"`
	HandlerErrors  uint64 `json:"handler_errors"`
	Unmatched      uint64 `json:"unmatched"`
	Malformed      uint64 `json:"malformed"`
	Oversize       uint64 `json:"oversize"`
	Dropped        uint64 `json:"dropped"`
	Published      uint64 `json:"published"`
	PublishErrors  uint64 `json:"publish_errors"`
	Reconnects     uint64 `json:"reconnects"`
	Subscriptions  int    `json:"subscriptions"`
	TableCapacity  int    `json:"table_capacity"`
	Collisions     int    `json:"collisions"`
	ArenaSize      int    `json:"arena_size"`
	ArenaHighWater int    `json:"arena_high_water"`
}

// counters are updated under the session lock and read lock-free.
type counters struct {
	dispatched    atomic.Uint64
	handlerErrors atomic.Uint64
	unmatched     atomic.Uint64
	malformed     atomic.Uint64
	oversize      atomic.Uint64
	dropped       atomic.Uint64
	published     atomic.Uint64
	publishErrors atomic.Uint64
	reconnects    atomic.Uint64
}

func (c *counters) count(o Outcome) {
	switch o {
	case OutcomeDispatched:
		c.dispatched.Add(1)
	case OutcomeHandlerError:
		c.handlerErrors.Add(1)
	case OutcomeUnmatched:
		c.unmatched.Add(1)
	case OutcomeMalformed:
		c.malformed.Add(1)
	case OutcomeOversize:
		c.oversize.Add(1)
	case OutcomeDropped:
		c.dropped.Add(1)
	}
}
