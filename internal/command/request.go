package command

import "fmt"

const (
	// MaxBitLength is the widest code a TransmitRequest can carry.
	MaxBitLength = 64

	// MaxRepeatCount is the largest repeat count a TransmitRequest can
	// carry. It matches the largest count the RF drivers send.
	MaxRepeatCount = 255
)

// TransmitRequest is one unit of RF transmission work.
// It is a plain value; the queue stores and returns copies.
type TransmitRequest struct {
	Code        uint64
	BitLength   uint
	Protocol    int
	RepeatCount int
}

// NewTransmitRequest builds a request after checking every field.
//
// Returns:
//   - TransmitRequest: the validated request
//   - error: ErrDecode describing the first invalid field
func NewTransmitRequest(code uint64, bitLength uint, protocol, repeatCount int) (TransmitRequest, error) {
	if bitLength < 1 || bitLength > MaxBitLength {
		return TransmitRequest{}, fmt.Errorf("%w: bit length %d outside 1..%d", ErrDecode, bitLength, MaxBitLength)
	}
	if protocol < 1 {
		return TransmitRequest{}, fmt.Errorf("%w: protocol %d must be positive", ErrDecode, protocol)
	}
	if repeatCount < 0 || repeatCount > MaxRepeatCount {
		return TransmitRequest{}, fmt.Errorf("%w: repeat count %d outside 0..%d", ErrDecode, repeatCount, MaxRepeatCount)
	}
	return TransmitRequest{
		Code:        code,
		BitLength:   bitLength,
		Protocol:    protocol,
		RepeatCount: repeatCount,
	}, nil
}
