package mqttbridge

import "errors"

var (
	// ErrInvalidPayload indicates an inbound message could not be decoded.
	ErrInvalidPayload = errors.New("mqttbridge: invalid payload")

	// ErrQueueFull indicates an outbound message was dropped.
	ErrQueueFull = errors.New("mqttbridge: outbound queue full")

	// ErrNotStarted indicates the bridge has not been started or was stopped.
	ErrNotStarted = errors.New("mqttbridge: not started")
)
