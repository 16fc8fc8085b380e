package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages.
const maxPayloadSize = 1 << 16

// Publish sends a message without waiting for acknowledgement.
//
// Delivery is best-effort: when the session is down the message is
// rejected with ErrNotConnected and nothing is buffered. A failure that
// paho reports synchronously is returned wrapped in ErrPublishFailed.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "/bridge/queue/length")
//   - payload: The message payload
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil when handed to paho, or a wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
	default:
	}
	return nil
}
