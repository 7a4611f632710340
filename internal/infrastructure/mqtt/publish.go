package mqtt

import (
	"fmt"
)

// Publish sends payload to topic and waits for the acknowledgement.
//
// The payload is copied before it is queued, so the caller may reuse its
// buffer as soon as Publish returns.
//
// Parameters:
//   - topic: Destination topic
//   - payload: Message body, at most the outbound buffer size
//   - qos: Delivery QoS (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrPayloadTooLarge,
//     ErrNotConnected, or ErrPublishFailed wrapping the broker error
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	c.mu.RLock()
	client, limit := c.client, c.sizes.Outbound
	c.mu.RUnlock()

	if limit > 0 && len(payload) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), limit)
	}
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	body := append([]byte(nil), payload...)
	token := client.Publish(topic, qos, retained, body)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
