package command

import "errors"

// Domain-specific errors for command admission.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrQueueFull is returned when the queue is at capacity. The request
	// (or the message it would have come from) is dropped.
	ErrQueueFull = errors.New("command: queue full")

	// ErrDecode is returned for a payload that is malformed, incomplete or
	// out of range. The message is dropped.
	ErrDecode = errors.New("command: decode failed")

	// ErrUnknownTopic is returned for a message on a topic the decoder
	// does not handle.
	ErrUnknownTopic = errors.New("command: unknown topic")
)
