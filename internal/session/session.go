package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-node/internal/arena"
	"github.com/nerrad567/gray-logic-node/internal/dispatch"
	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/ota"
	"github.com/nerrad567/gray-logic-node/internal/payload"
)

// Session serialises transport events and dispatches control messages.
//
// Session is safe for concurrent use. All mutable fields below mu are
// guarded by it, including the arena, which has no locking of its own.
type Session struct {
	id          string
	transport   Transport
	logger      Logger
	gpio        gpio.Driver
	ota         ota.Trigger
	recorder    Recorder
	stopTimeout time.Duration
	now         func() time.Time

	state atomic.Int32
	stats counters

	mu       sync.Mutex
	cfg      Config
	identity Identity
	sizes    BufferSizes
	table    *dispatch.Table[Handler]
	arena    *arena.Arena
}

// New creates a session bound to a transport. Call Start to begin.
func New(transport Transport, opts Options) *Session {
	s := &Session{
		id:          uuid.NewString(),
		transport:   transport,
		logger:      opts.Logger,
		gpio:        opts.GPIO,
		ota:         opts.OTA,
		recorder:    opts.Recorder,
		stopTimeout: opts.StopTimeout,
		now:         time.Now,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = DefaultStopTimeout
	}
	return s
}

// ID returns the session instance identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Debug("session state changed",
			"session_id", s.id,
			"from", prev.String(),
			"to", st.String(),
		)
	}
}

// Start derives the device identity, creates the dispatch table and arena,
// registers with the transport and starts it.
//
// On success the session is starting; the transport's connected event moves
// it to connected. On any failure partial resources are released, the
// session is failed and the error is returned.
//
// Parameters:
//   - cfg: Session settings; zero fields take their defaults
//
// Returns:
//   - error: ErrInvalidState if the session was already started,
//     ErrControlPrefixTooLong, otherwise the setup error
func (s *Session) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateUninitialized {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, st)
	}
	if s.transport == nil {
		return s.failLocked(ErrNoTransport)
	}

	cfg = cfg.withDefaults(s.now())
	if len(cfg.ControlPrefix)+1 >= MaxIdentityLength {
		return s.failLocked(fmt.Errorf("%w: %q", ErrControlPrefixTooLong, cfg.ControlPrefix))
	}
	s.cfg = cfg
	s.identity = Identity{
		DeviceName:  NormalizeDeviceName(cfg.DeviceName),
		DeviceModel: truncate(cfg.DeviceModel),
		LastUpdated: truncate(cfg.LastUpdated),
		SensorType:  truncate(cfg.SensorType),
	}
	s.sizes = BufferSizes{
		Inbound:  cfg.InboundBufferSize,
		Outbound: cfg.OutboundBufferSize,
	}

	table, err := dispatch.NewTable[Handler](cfg.TableCapacity)
	if err != nil {
		return s.failLocked(fmt.Errorf("creating dispatch table: %w", err))
	}
	s.table = table
	s.arena = arena.New(cfg.ArenaSize)

	s.transport.Register(s)
	if err := s.transport.Start(s.sizes); err != nil {
		s.transport.Unregister()
		return s.failLocked(fmt.Errorf("starting transport: %w", err))
	}

	s.setState(StateStarting)
	if control := s.controlTopicLocked(); len(control) > MaxIdentityLength {
		s.logger.Info("control topic exceeds dispatch key length, matching on truncated key",
			"control_topic", control,
			"key", truncateKey(control),
		)
	}
	s.logger.Info("session started",
		"session_id", s.id,
		"device", s.identity.DeviceName,
		"control_topic", s.controlTopicLocked(),
		"inbound_buffer", s.sizes.Inbound,
		"outbound_buffer", s.sizes.Outbound,
	)
	return nil
}

// failLocked releases start-time resources and marks the session failed.
func (s *Session) failLocked(err error) error {
	s.table = nil
	s.arena = nil
	s.setState(StateFailed)
	s.logger.Error("session start failed", "session_id", s.id, "error", err)
	return err
}

// Stop unregisters from the transport, then stops and destroys it.
//
// Transport teardown is bounded by the stop timeout. If it does not finish
// in time the session is still stopped and ErrStopTimeout is returned.
// Stopping a stopped session is a no-op.
//
// Returns:
//   - error: ErrStopTimeout, a transport error, or ErrInvalidState if the
//     session never started
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State()
	if st == StateStopped {
		return nil
	}
	if !st.live() {
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidState, st)
	}

	s.setState(StateStopping)
	s.transport.Unregister()

	done := make(chan error, 1)
	t := s.transport
	go func() {
		stopErr := t.Stop()
		done <- errors.Join(stopErr, t.Destroy())
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
		if err != nil {
			err = fmt.Errorf("stopping transport: %w", err)
		}
	case <-timer.C:
		err = ErrStopTimeout
	}

	s.table = nil
	s.arena = nil
	s.setState(StateStopped)

	if err != nil {
		s.logger.Warn("session stopped with error", "session_id", s.id, "error", err)
	} else {
		s.logger.Info("session stopped", "session_id", s.id)
	}
	return err
}

// HandleConnected subscribes the control topic, announces the device
// identity and publishes the connected status. Failures are logged.
func (s *Session) HandleConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().live() {
		s.logger.Debug("ignoring connect event", "session_id", s.id, "state", s.State().String())
		return
	}
	s.setState(StateConnected)

	topic := s.controlTopicLocked()
	if err := s.subscribeLocked(topic, controlQoS, HandlerFunc(s.handleControl)); err != nil {
		s.logger.Error("failed to subscribe control topic", "topic", topic, "error", err)
		return
	}

	if err := s.sendIdentityLocked(); err != nil {
		s.logger.Error("failed to send device info", "error", err)
	} else {
		s.logger.Info("device info sent", "device", s.identity.DeviceName)
	}

	if err := s.sendDeviceStatusLocked(StatusConnected); err != nil {
		s.logger.Warn("failed to send connected status", "error", err)
	}
}

// HandleDisconnected asks the transport to reconnect. Failures are logged.
func (s *Session) HandleDisconnected(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().live() {
		return
	}
	s.setState(StateDisconnected)
	s.stats.reconnects.Add(1)
	s.logger.Warn("transport disconnected", "session_id", s.id, "error", cause)

	if err := s.transport.Reconnect(); err != nil {
		s.logger.Error("failed to reconnect", "session_id", s.id, "error", err)
		return
	}
	s.logger.Info("reconnect requested", "session_id", s.id)
}

// HandleData parses an inbound payload and calls the handler subscribed
// to its topic. Oversize or malformed payloads and unmatched topics are
// dropped.
func (s *Session) HandleData(topic string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	outcome := s.dispatchLocked(topic, data)
	s.stats.count(outcome)

	if s.recorder != nil {
		s.recorder.RecordDispatch(Record{
			Device:   s.identity.DeviceName,
			Topic:    topic,
			Outcome:  outcome,
			Bytes:    len(data),
			Duration: s.now().Sub(start),
		})
	}
}

func (s *Session) dispatchLocked(topic string, data []byte) Outcome {
	if !s.State().live() || s.table == nil {
		return OutcomeDropped
	}

	if len(data) > s.sizes.Inbound {
		s.logger.Warn("dropping oversize message",
			"topic", topic,
			"bytes", len(data),
			"limit", s.sizes.Inbound,
		)
		return OutcomeOversize
	}

	s.arena.Reset()
	doc, err := payload.Parse(s.arena, data)
	if err != nil {
		s.logger.Warn("dropping malformed message", "topic", topic, "error", err)
		return OutcomeMalformed
	}

	h, ok := s.table.Get(truncateKey(topic))
	if !ok {
		return OutcomeUnmatched
	}

	msg := Message{
		Topic:     topic,
		Payload:   data,
		Doc:       doc,
		Device:    s.identity,
		Publisher: publisher{s: s},
	}
	if err := invoke(h, msg); err != nil {
		s.logger.Error("message handler failed", "topic", topic, "error", err)
		return OutcomeHandlerError
	}
	return OutcomeDispatched
}

// invoke calls the handler, converting a panic into an error so the
// transport's delivery goroutine survives.
func invoke(h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleMessage(msg)
}

// Subscribe installs a handler for topic and subscribes it on the
// transport. Re-subscribing a topic replaces its handler.
//
// Parameters:
//   - topic: Exact topic, shorter than dispatch.MaxKeyLength bytes unless
//     it is the control topic
//   - qos: Delivery quality level
//   - h: Handler called for messages on topic
//
// Returns:
//   - error: dispatch.ErrKeyTooLong, dispatch.ErrTableFull, or a transport
//     error (the table is left unchanged)
func (s *Session) Subscribe(topic string, qos byte, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot subscribe in %s", ErrInvalidState, st)
	}
	return s.subscribeLocked(topic, qos, h)
}

func (s *Session) subscribeLocked(topic string, qos byte, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	key := s.keyLocked(topic)
	prev, existed := s.table.Get(key)
	if err := s.table.Put(key, h); err != nil {
		return fmt.Errorf("subscribing %q: %w", topic, err)
	}

	if err := s.transport.Subscribe(topic, qos); err != nil {
		if existed {
			_ = s.table.Put(key, prev) //nolint:errcheck // key is present, update cannot fail
		} else {
			s.table.Remove(key)
		}
		return fmt.Errorf("subscribing %q: %w", topic, err)
	}

	s.logger.Debug("subscribed", "topic", topic, "key", key, "qos", qos)
	return nil
}

// keyLocked returns the dispatch key for topic. The control topic is
// stored under its truncated lookup key so that long device names stay
// reachable; any other topic must fit a key slot as is.
func (s *Session) keyLocked(topic string) string {
	if topic == s.controlTopicLocked() {
		return truncateKey(topic)
	}
	return topic
}

// Unsubscribe removes the handler for topic and unsubscribes it on the
// transport.
func (s *Session) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot unsubscribe in %s", ErrInvalidState, st)
	}
	key := s.keyLocked(topic)
	if _, ok := s.table.Get(key); !ok {
		return fmt.Errorf("%w: %q", ErrNotSubscribed, topic)
	}
	if err := s.transport.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing %q: %w", topic, err)
	}
	s.table.Remove(key)
	return nil
}

// Reconfigure re-sends the device identity. The connection is untouched.
func (s *Session) Reconfigure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot reconfigure in %s", ErrInvalidState, st)
	}
	return s.sendIdentityLocked()
}

// Identity returns the announced device identity.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// BufferSizes returns the effective transport buffer sizes.
func (s *Session) BufferSizes() BufferSizes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizes
}

// ControlTopic returns the topic the control handler is subscribed to.
func (s *Session) ControlTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlTopicLocked()
}

func (s *Session) controlTopicLocked() string {
	return s.cfg.ControlPrefix + "/" + s.identity.DeviceName
}

func (s *Session) statusTopicLocked() string {
	return s.cfg.StatusPrefix + s.identity.DeviceName
}

// Handlers returns the dispatch keys of subscribed topics in lexical order.
func (s *Session) Handlers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		return nil
	}
	keys := s.table.Keys()
	slices.Sort(keys)
	return keys
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		State:         s.State().String(),
		Dispatched:    s.stats.dispatched.Load(),
		HandlerErrors: s.stats.handlerErrors.Load(),
		Unmatched:     s.stats.unmatched.Load(),
		Malformed:     s.stats.malformed.Load(),
		Oversize:      s.stats.oversize.Load(),
		Dropped:       s.stats.dropped.Load(),
		Published:     s.stats.published.Load(),
		PublishErrors: s.stats.publishErrors.Load(),
		Reconnects:    s.stats.reconnects.Load(),
	}
	if s.table != nil {
		st.Subscriptions = s.table.Size()
		st.TableCapacity = s.table.Capacity()
		st.Collisions = s.table.Collisions()
	}
	if s.arena != nil {
		st.ArenaSize = s.arena.Cap()
		st.ArenaHighWater = s.arena.HighWater()
	}
	return st
}
