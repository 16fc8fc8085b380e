package rf

import "errors"

// Domain-specific errors for RF encoding and drivers.
var (
	// ErrUnknownEncoding is reported for a reception whose value is zero:
	// the receiver saw a signal but could not decode it.
	ErrUnknownEncoding = errors.New("rf: unknown encoding")

	// ErrInvalidCodeWord is returned for a group or device address that is
	// not exactly five '0'/'1' characters.
	ErrInvalidCodeWord = errors.New("rf: invalid code word")

	// ErrUnknownProtocol is returned for a protocol id outside the table.
	ErrUnknownProtocol = errors.New("rf: unknown protocol")

	// ErrRepeatRange is returned for a repeat count above MaxRepeat.
	ErrRepeatRange = errors.New("rf: repeat count out of range")

	// ErrClosed is returned by a driver after Close, and by a driver whose
	// hardware is currently unavailable.
	ErrClosed = errors.New("rf: driver closed")
)
