// Package session implements the node's MQTT session dispatch engine.
//
// A Session sits between a Transport (the MQTT client) and the handlers that
// act on inbound control messages. Transport callbacks for connect,
// disconnect and data events are serialised by a single mutex, so at most
// one event is processed at a time per session. Each data event resets the
// session's arena, parses the payload into it, resolves the topic in a
// fixed-capacity dispatch table and calls the matched Handler synchronously.
//
// Lifecycle:
//
//	uninitialized -> starting -> {connected, failed}
//	connected <-> disconnected
//	{starting, connected, disconnected} -> stopping -> stopped
//
// failed and stopped are terminal; create a new Session to start again.
//
// Handlers run while the session mutex is held. They must publish through
// Message.Publisher and must not call the locking methods on Session
// (Subscribe, SendSingle, Stop, ...), which would deadlock.
//
// Usage:
//
//	s := session.New(transport, session.Options{Logger: log, GPIO: pins})
//	if err := s.Start(session.Config{DeviceName: "kitchen-01"}); err != nil {
//	    return err
//	}
//	defer s.Stop()
package session
