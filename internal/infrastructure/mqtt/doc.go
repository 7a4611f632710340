// Package mqtt adapts the Eclipse Paho client to the session transport.
//
// Client implements session.Transport. It owns the paho connection and
// forwards connect, connection-lost and message callbacks to the registered
// session.EventHandler.
//
// Behaviour:
//   - Start connects asynchronously with connect retry, so a broker that is
//     down at boot does not fail the node.
//   - Auto-reconnect is on; subscriptions made through the client are
//     restored before the connected event is delivered.
//   - A Last Will of {"status":"disconnected"} is registered on the node's
//     status topic, and the same payload is published on a clean Stop.
//   - Message ordering is disabled so a handler that publishes and waits for
//     the acknowledgement cannot block paho's router.
//   - Publish copies the payload; callers may reuse their buffer.
//
// Usage:
//
//	c := mqtt.New(cfg.MQTT, mqtt.Options{WillTopic: "status/node-01", Logger: log})
//	s := session.New(c, session.Options{Logger: log})
//	if err := s.Start(sessionCfg); err != nil {
//	    return err
//	}
package mqtt
