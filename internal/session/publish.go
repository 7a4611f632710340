package session

import (
	"fmt"

	"github.com/nerrad567/gray-logic-node/internal/payload"
)

// DeviceStatus is a status announced on the node's status topic.
type DeviceStatus int

// Device statuses.
const (
	StatusConnected DeviceStatus = iota
	StatusDisconnected
	StatusSleeping
	StatusAwaitingSleep
	StatusHeapError
	StatusError
)

// String returns the wire value. Unrecognised statuses are "unknown".
func (d DeviceStatus) String() string {
	switch d {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusSleeping:
		return "sleeping"
	case StatusAwaitingSleep:
		return "awaiting_sleep"
	case StatusHeapError:
		return "heap_error"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SendSingle publishes {"key":"value"} to topic.
//
// The object is serialised into a 128-byte buffer. If it does not fit,
// payload.ErrBufferTooSmall is returned and nothing is published.
func (s *Session) SendSingle(topic, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot publish in %s", ErrInvalidState, st)
	}
	return s.sendSingleLocked(topic, key, value)
}

// SendMultiple publishes an object built from parallel keys and values.
//
// The object is serialised into a 256-byte buffer. A missing key or value
// fails with ErrMissingField naming its index; nothing is published.
func (s *Session) SendMultiple(topic string, keys, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot publish in %s", ErrInvalidState, st)
	}
	return s.sendMultipleLocked(topic, keys, values)
}

// SendDeviceStatus publishes {"status":"<status>"} to the status topic.
func (s *Session) SendDeviceStatus(status DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); !st.live() {
		return fmt.Errorf("%w: cannot publish in %s", ErrInvalidState, st)
	}
	return s.sendDeviceStatusLocked(status)
}

func (s *Session) sendSingleLocked(topic, key, value string) error {
	s.arena.Reset()
	out, err := payload.Encode(s.arena, singleBufferSize, []string{key}, []string{value})
	if err != nil {
		return fmt.Errorf("encoding %q: %w", topic, err)
	}
	return s.publishLocked(topic, out)
}

func (s *Session) sendMultipleLocked(topic string, keys, values []string) error {
	n := max(len(keys), len(values))
	for i := range n {
		if i >= len(keys) || keys[i] == "" {
			return fmt.Errorf("%w: key at index %d", ErrMissingField, i)
		}
		if i >= len(values) {
			return fmt.Errorf("%w: value at index %d", ErrMissingField, i)
		}
	}

	s.arena.Reset()
	out, err := payload.Encode(s.arena, multipleBufferSize, keys, values)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", topic, err)
	}
	return s.publishLocked(topic, out)
}

func (s *Session) sendDeviceStatusLocked(status DeviceStatus) error {
	return s.sendSingleLocked(s.statusTopicLocked(), "status", status.String())
}

func (s *Session) sendIdentityLocked() error {
	return s.sendMultipleLocked(DeviceInfoTopic, identityKeys, s.identity.values())
}

func (s *Session) publishLocked(topic string, out []byte) error {
	if err := s.transport.Publish(topic, out, publishQoS, false); err != nil {
		s.stats.publishErrors.Add(1)
		return fmt.Errorf("publishing %q: %w", topic, err)
	}
	s.stats.published.Add(1)
	return nil
}

// publisher exposes the send operations to handlers, which already run
// under the session lock.
type publisher struct {
	s *Session
}

func (p publisher) SendSingle(topic, key, value string) error {
	return p.s.sendSingleLocked(topic, key, value)
}

func (p publisher) SendMultiple(topic string, keys, values []string) error {
	return p.s.sendMultipleLocked(topic, keys, values)
}

func (p publisher) SendDeviceStatus(status DeviceStatus) error {
	return p.s.sendDeviceStatusLocked(status)
}

func (p publisher) SendIdentity() error {
	return p.s.sendIdentityLocked()
}
