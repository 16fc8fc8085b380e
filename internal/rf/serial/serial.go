// Package serial talks to a 433 MHz transceiver MCU over a serial line.
//
// The MCU speaks a line protocol terminated by '\n':
//
//	S <code> <bits> <protocol> <repeat>   host to MCU, send a code
//	K                                     MCU to host, send finished
//	R <code> <bits> <protocol> <delay>    MCU to host, code received
//	# <text>                              MCU diagnostics, logged
//
// The MCU handles one send at a time and answers each with K once the
// code is off the air.
package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	goserial "go.bug.st/serial"

	"github.com/nerrad567/rfbridge/internal/rf"
)

const (
	defaultReopenDelay = 5 * time.Second
	defaultLostDelay   = 2 * time.Second
	defaultAckTimeout  = 2 * time.Second
)

// ErrNoAck is returned when the MCU does not confirm a send in time.
var ErrNoAck = errors.New("serial: transceiver did not acknowledge")

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures the serial driver.
type Options struct {
	Port     string
	BaudRate int
	Defaults rf.Defaults
	Logger   Logger

	// ReopenDelay is the wait after a failed open. LostDelay is the wait
	// after an open port fails. Zero uses the defaults.
	ReopenDelay time.Duration
	LostDelay   time.Duration

	// AckTimeout is how long past the code's airtime to wait for K.
	// Zero uses the default.
	AckTimeout time.Duration
}

// opener opens the port. Replaced in tests.
type opener func(name string, mode *goserial.Mode) (io.ReadWriteCloser, error)

func openSerial(name string, mode *goserial.Mode) (io.ReadWriteCloser, error) {
	return goserial.Open(name, mode)
}

// link is one open port. lost is closed when the port goes away.
type link struct {
	port      io.ReadWriteCloser
	lost      chan struct{}
	closeOnce sync.Once
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		l.port.Close()
	})
}

// Driver keeps a serial connection to the transceiver open, reopening it
// whenever it fails.
type Driver struct {
	opts    Options
	open    opener
	logger  Logger
	mailbox *rf.Mailbox

	// txMu serialises sends; the MCU acknowledges one at a time.
	txMu sync.Mutex
	acks chan struct{}

	linkMu sync.Mutex
	link   *link

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open starts the connection loop and returns immediately; the port is
// opened in the background.
func Open(opts Options) *Driver {
	return start(opts, openSerial)
}

func start(opts Options, open opener) *Driver {
	if opts.ReopenDelay <= 0 {
		opts.ReopenDelay = defaultReopenDelay
	}
	if opts.LostDelay <= 0 {
		opts.LostDelay = defaultLostDelay
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		opts:    opts,
		open:    open,
		logger:  logger,
		mailbox: rf.NewMailbox(),
		acks:    make(chan struct{}, 1),
		cancel:  cancel,
	}

	d.wg.Add(1)
	go d.run(ctx)
	return d
}

// Transmit writes the send command and waits for the MCU to acknowledge
// it, bounded by ctx and the code's airtime plus AckTimeout. It fails
// with rf.ErrClosed at once while the port is not open. A repeat count
// of zero sends nothing.
func (d *Driver) Transmit(ctx context.Context, code uint64, bitLength uint, protocol, repeat int) error {
	protocol = d.opts.Defaults.Resolve(protocol)
	if err := rf.CheckRepeat(repeat); err != nil {
		return err
	}
	p, err := rf.LookupProtocol(protocol)
	if err != nil {
		return err
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	l := d.current()
	if l == nil {
		return rf.ErrClosed
	}
	if repeat == 0 {
		return nil
	}

	// An ack left over from an abandoned send must not confirm this one.
	select {
	case <-d.acks:
	default:
	}

	line := FormatTransmit(code, bitLength, protocol, repeat)
	d.logger.Debug("serial tx", "line", line)
	if _, err := io.WriteString(l.port, line+"\n"); err != nil {
		l.close()
		return fmt.Errorf("serial write: %w", err)
	}

	timer := time.NewTimer(rf.Airtime(code, bitLength, p, repeat) + d.opts.AckTimeout)
	defer timer.Stop()

	select {
	case <-d.acks:
		return nil
	case <-l.lost:
		return rf.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrNoAck
	}
}

// Ready reports whether the port is open.
func (d *Driver) Ready() bool {
	return d.current() != nil
}

func (d *Driver) current() *link {
	d.linkMu.Lock()
	defer d.linkMu.Unlock()
	return d.link
}

func (d *Driver) setLink(l *link) {
	d.linkMu.Lock()
	d.link = l
	d.linkMu.Unlock()
}

// Receive pops a reception reported by the MCU.
func (d *Driver) Receive() (rf.Reception, bool) {
	return d.mailbox.Receive()
}

// Close stops the connection loop and closes the port.
func (d *Driver) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

// run is the connection loop: open, serve until the port fails, retry.
func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	mode := &goserial.Mode{
		BaudRate: d.opts.BaudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}

	for {
		port, err := d.open(d.opts.Port, mode)
		if err != nil {
			d.logger.Warn("failed to open serial port", "port", d.opts.Port, "error", err)
			if !sleep(ctx, d.opts.ReopenDelay) {
				return
			}
			continue
		}
		d.logger.Info("serial port opened", "port", d.opts.Port)

		d.serve(ctx, port)

		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("serial connection lost, reopening", "port", d.opts.Port)
		if !sleep(ctx, d.opts.LostDelay) {
			return
		}
	}
}

// serve publishes the port to Transmit and parses lines from it until the
// port fails or ctx is cancelled. The port is closed on return.
func (d *Driver) serve(ctx context.Context, port io.ReadWriteCloser) {
	l := &link{port: port, lost: make(chan struct{})}
	d.setLink(l)
	defer func() {
		d.setLink(nil)
		close(l.lost)
		l.close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		d.handleLine(scanner.Text())
	}
}

func (d *Driver) handleLine(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "K":
		select {
		case d.acks <- struct{}{}:
		default:
		}
	case strings.HasPrefix(line, "#"):
		d.logger.Debug("transceiver", "message", strings.TrimSpace(line[1:]))
	case strings.HasPrefix(line, "R "):
		rec, err := ParseReception(line)
		if err != nil {
			d.logger.Warn("bad reception line", "line", line, "error", err)
			return
		}
		d.mailbox.Put(rec)
	default:
		d.logger.Debug("serial rx ignored", "line", line)
	}
}

// FormatTransmit renders a send command.
func FormatTransmit(code uint64, bitLength uint, protocol, repeat int) string {
	return fmt.Sprintf("S %d %d %d %d", code, bitLength, protocol, repeat)
}

// ParseReception parses "R <code> <bits> <protocol> <delay>".
func ParseReception(line string) (rf.Reception, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 || fields[0] != "R" {
		return rf.Reception{}, fmt.Errorf("want \"R <code> <bits> <protocol> <delay>\", got %q", line)
	}

	code, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return rf.Reception{}, fmt.Errorf("code: %w", err)
	}
	bits, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return rf.Reception{}, fmt.Errorf("bits: %w", err)
	}
	protocol, err := strconv.Atoi(fields[3])
	if err != nil {
		return rf.Reception{}, fmt.Errorf("protocol: %w", err)
	}
	delay, err := strconv.Atoi(fields[4])
	if err != nil {
		return rf.Reception{}, fmt.Errorf("delay: %w", err)
	}

	return rf.Reception{
		Value:     code,
		BitLength: uint(bits),
		Protocol:  protocol,
		Delay:     time.Duration(delay) * time.Microsecond,
	}, nil
}

// sleep waits for d or until ctx is cancelled, reporting whether to continue.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
