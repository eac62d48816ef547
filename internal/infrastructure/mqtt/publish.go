package mqtt

import (
	"fmt"
)

// maxPayloadSize caps one message. Birdhouse payloads are small JSON
// documents; anything near this size is a bug upstream.
const maxPayloadSize = 64 << 10

// Publish sends payload to topic and waits for the broker acknowledgment
// (QoS 1 and 2) up to defaultPublishTimeout.
//
// Outlet state and system status are published retained so a dashboard
// that subscribes later sees the current level at once; motion and sensor
// events are not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %w: %d bytes (max %d)", ErrPublishFailed, ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
