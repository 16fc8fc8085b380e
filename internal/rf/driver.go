package rf

import (
	"context"
	"fmt"
)

// MaxRepeat is the largest repeat count a driver sends.
const MaxRepeat = 255

// Transmitter drives the 433 MHz transmitter.
//
// Transmit blocks for the airtime of the code. There is no delivery
// feedback from the hardware; an error means the code was not sent at all.
// A repeat count of zero sends nothing.
type Transmitter interface {
	Transmit(ctx context.Context, code uint64, bitLength uint, protocol, repeat int) error
}

// Receiver reports codes heard by the 433 MHz receiver.
// Receive never blocks; it returns false when nothing is pending.
type Receiver interface {
	Receive() (Reception, bool)
}

// Readiness is implemented by drivers whose hardware comes and goes.
// While Ready reports false the transmit loop leaves requests queued.
type Readiness interface {
	Ready() bool
}

// Transceiver is a driver with both halves.
type Transceiver interface {
	Transmitter
	Receiver
	Close() error
}

// Defaults are applied to requests that leave parameters unset.
// The repeat count is always taken as given.
type Defaults struct {
	Protocol int
}

// Resolve fills a zero protocol from the defaults.
func (d Defaults) Resolve(protocol int) int {
	if protocol == 0 {
		return d.Protocol
	}
	return protocol
}

// CheckRepeat rejects a repeat count outside 0..MaxRepeat.
func CheckRepeat(repeat int) error {
	if repeat < 0 || repeat > MaxRepeat {
		return fmt.Errorf("%w: %d outside 0..%d", ErrRepeatRange, repeat, MaxRepeat)
	}
	return nil
}

// receptionBuffer is the number of undelivered receptions a driver keeps.
const receptionBuffer = 16

// Mailbox is a bounded, non-blocking hand-off of receptions from a driver
// goroutine to the tick loop. When full, the oldest reception is dropped.
type Mailbox struct {
	ch chan Reception
}

// NewMailbox creates a mailbox holding up to receptionBuffer receptions.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Reception, receptionBuffer)}
}

// Put stores rec, evicting the oldest entry if necessary.
func (m *Mailbox) Put(rec Reception) {
	for {
		select {
		case m.ch <- rec:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// Receive pops the oldest reception.
func (m *Mailbox) Receive() (Reception, bool) {
	select {
	case rec := <-m.ch:
		return rec, true
	default:
		return Reception{}, false
	}
}
