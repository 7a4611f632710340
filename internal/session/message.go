package session

import (
	"github.com/nerrad567/gray-logic-node/internal/payload"
)

// Message is one inbound control message.
//
// A Message is only valid for the duration of the handler call. Doc lives in
// the session arena and goes stale on the next data event or publish; it
// reports payload.ErrStaleDocument once that happens.
type Message struct {
	Topic   string
	Payload []byte
	Doc     payload.Document

	// Device is the session's identity at the time of the event.
	Device Identity

	// Publisher sends replies without taking the session lock.
	Publisher Publisher
}

// Handler handles messages for a subscribed topic.
//
// HandleMessage runs with the session lock held. It must not call Session
// methods (Stats, Subscribe, Identity, ...): they take the same lock and
// deadlock. Reply through msg.Publisher and read the identity from
// msg.Device.
type Handler interface {
	HandleMessage(msg Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg Message) error

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg Message) error {
	return f(msg)
}

// Publisher sends bounded JSON payloads through the session transport.
//
// Every send resets the session arena, invalidating any Document parsed
// before it.
type Publisher interface {
	SendSingle(topic, key, value string) error
	SendMultiple(topic string, keys, values []string) error
	SendDeviceStatus(status DeviceStatus) error
	SendIdentity() error
}
