// Package gpio drives a 433 MHz transmitter and receiver pair wired
// directly to GPIO lines through the Linux character device API.
package gpio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/rfbridge/internal/rf"
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures the GPIO driver.
type Options struct {
	// Chip is the gpiochip name, e.g. "gpiochip0".
	Chip string

	// TransmitPin is the line offset of the transmitter data pin.
	TransmitPin int

	// ReceivePin is the line offset of the receiver data pin.
	// A negative value disables reception.
	ReceivePin int

	// Tolerance is the accepted pulse deviation in percent.
	Tolerance int

	Defaults rf.Defaults
	Logger   Logger
}

// lineSetter is the part of a gpiod line the transmitter needs.
type lineSetter interface {
	SetValue(value int) error
}

// Driver bit-bangs codes on the transmit line and decodes edges on the
// receive line.
type Driver struct {
	chip *gpiod.Chip
	tx   *gpiod.Line
	rx   *gpiod.Line

	defaults rf.Defaults
	logger   Logger

	// txMu serialises transmissions; the radio sends one code at a time.
	txMu         sync.Mutex
	transmitting atomic.Bool

	// decMu guards the decoder, fed from the gpiod event goroutine.
	decMu    sync.Mutex
	decoder  *rf.PulseDecoder
	lastEdge time.Duration

	mailbox *rf.Mailbox
}

// Open requests the transmit line (driven low) and, when enabled, the
// receive line with edge detection on both edges.
func Open(opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	chip, err := gpiod.NewChip(opts.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", opts.Chip, err)
	}

	d := &Driver{
		chip:     chip,
		defaults: opts.Defaults,
		logger:   logger,
		decoder:  rf.NewPulseDecoder(opts.Tolerance),
		mailbox:  rf.NewMailbox(),
	}

	d.tx, err = chip.RequestLine(opts.TransmitPin, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("requesting transmit line %d: %w", opts.TransmitPin, err)
	}

	if opts.ReceivePin >= 0 {
		d.rx, err = chip.RequestLine(opts.ReceivePin,
			gpiod.AsInput,
			gpiod.WithBothEdges,
			gpiod.WithEventHandler(d.handleEdge),
		)
		if err != nil {
			d.tx.Close()
			chip.Close()
			return nil, fmt.Errorf("requesting receive line %d: %w", opts.ReceivePin, err)
		}
	}

	return d, nil
}

// Transmit sends the code repeat times and blocks for its airtime.
// A repeat count of zero sends nothing.
func (d *Driver) Transmit(ctx context.Context, code uint64, bitLength uint, protocol, repeat int) error {
	protocol = d.defaults.Resolve(protocol)
	if err := rf.CheckRepeat(repeat); err != nil {
		return err
	}
	p, err := rf.LookupProtocol(protocol)
	if err != nil {
		return err
	}
	if d.tx == nil {
		return rf.ErrClosed
	}
	if repeat == 0 {
		return nil
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	d.transmitting.Store(true)
	defer d.transmitting.Store(false)

	d.logger.Debug("transmitting", "code", code, "bit_length", bitLength, "protocol", protocol,
		"repeat", repeat, "airtime", rf.Airtime(code, bitLength, p, repeat))
	return play(ctx, d.tx, rf.Waveform(code, bitLength, p, 1), repeat)
}

// Receive pops a decoded reception.
func (d *Driver) Receive() (rf.Reception, bool) {
	return d.mailbox.Receive()
}

// Close releases the lines and the chip.
func (d *Driver) Close() error {
	if d.rx != nil {
		d.rx.Close()
	}
	if d.tx != nil {
		d.tx.SetValue(0) //nolint:errcheck // Best effort before release
		d.tx.Close()
	}
	if d.chip != nil {
		return d.chip.Close()
	}
	return nil
}

// handleEdge runs on the gpiod event goroutine. Edges seen while this
// driver is transmitting are our own signal and are discarded.
func (d *Driver) handleEdge(evt gpiod.LineEvent) {
	d.decMu.Lock()
	defer d.decMu.Unlock()

	delta := evt.Timestamp - d.lastEdge
	d.lastEdge = evt.Timestamp

	if d.transmitting.Load() {
		d.decoder.Reset()
		return
	}

	if rec, ok := d.decoder.Feed(delta); ok {
		d.mailbox.Put(rec)
	}
}

// play drives one repetition of the pulse train onto the line repeat
// times and leaves it low. Pulses are timed by spinning on the monotonic
// clock; sleeping is far too coarse for sub-millisecond pulses.
func play(ctx context.Context, line lineSetter, pulses []rf.Pulse, repeat int) error {
	defer line.SetValue(0) //nolint:errcheck // Best effort, transmitter must not stay keyed

	deadline := time.Now()
	for r := 0; r < repeat; r++ {
		for _, p := range pulses {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := line.SetValue(level(p.High)); err != nil {
				return fmt.Errorf("setting transmit line: %w", err)
			}
			deadline = deadline.Add(p.Duration)
			for time.Now().Before(deadline) {
			}
		}
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
