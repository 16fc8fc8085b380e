// Package stub provides an in-memory RF driver for development hosts
// without radio hardware and for tests.
package stub

import (
	"context"
	"sync"

	"github.com/nerrad567/rfbridge/internal/rf"
)

// Transmission is one recorded Transmit call.
type Transmission struct {
	Code      uint64
	BitLength uint
	Protocol  int
	Repeat    int
}

// Driver records transmissions and replays injected receptions.
type Driver struct {
	mu       sync.Mutex
	sent     []Transmission
	closed   bool
	offline  bool
	defaults rf.Defaults
	mailbox  *rf.Mailbox
}

// New creates a stub driver.
func New(defaults rf.Defaults) *Driver {
	return &Driver{defaults: defaults, mailbox: rf.NewMailbox()}
}

// Transmit records the call after validating the protocol id and repeat
// count. A zero repeat count is recorded as given.
func (d *Driver) Transmit(_ context.Context, code uint64, bitLength uint, protocol, repeat int) error {
	protocol = d.defaults.Resolve(protocol)
	if err := rf.CheckRepeat(repeat); err != nil {
		return err
	}
	if _, err := rf.LookupProtocol(protocol); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.offline {
		return rf.ErrClosed
	}
	d.sent = append(d.sent, Transmission{Code: code, BitLength: bitLength, Protocol: protocol, Repeat: repeat})
	return nil
}

// Ready reports whether the simulated hardware is present.
func (d *Driver) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && !d.offline
}

// SetOffline simulates the hardware going away or coming back.
func (d *Driver) SetOffline(offline bool) {
	d.mu.Lock()
	d.offline = offline
	d.mu.Unlock()
}

// Receive pops an injected reception.
func (d *Driver) Receive() (rf.Reception, bool) {
	return d.mailbox.Receive()
}

// Inject queues a reception as if it had been heard on air.
func (d *Driver) Inject(rec rf.Reception) {
	d.mailbox.Put(rec)
}

// Sent returns a copy of all recorded transmissions.
func (d *Driver) Sent() []Transmission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transmission(nil), d.sent...)
}

// Close makes further transmissions fail.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
