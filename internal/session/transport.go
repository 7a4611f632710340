package session

// EventHandler receives transport events. Session implements it.
type EventHandler interface {
	HandleConnected()
	HandleDisconnected(err error)
	HandleData(topic string, payload []byte)
}

// Transport is the publish/subscribe client a Session drives.
//
// Implementations deliver events to the registered EventHandler from their
// own goroutine. Publish must not retain payload after it returns; the
// session reuses that memory for the next message.
type Transport interface {
	// Register sets the event handler. It replaces any previous handler.
	Register(h EventHandler)

	// Unregister removes the event handler; later events are discarded.
	Unregister()

	// Start begins connecting. The connected event is delivered later.
	Start(sizes BufferSizes) error

	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Reconnect requests a new connection after a disconnect.
	Reconnect() error

	// Stop disconnects the client.
	Stop() error

	// Destroy releases the client. The transport is unusable afterwards.
	Destroy() error
}
