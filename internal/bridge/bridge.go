package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rfbridge/internal/command"
	"github.com/nerrad567/rfbridge/internal/connectivity"
	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfbridge/internal/mode"
	"github.com/nerrad567/rfbridge/internal/rf"
)

// Loop timing defaults.
const (
	DefaultTickInterval = time.Millisecond
	DefaultIdleDelay    = 10 * time.Millisecond
	DefaultPumpBatch    = 16
)

// Publisher sends outbound messages. It must not wait on the network.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Inbox yields buffered inbound messages.
type Inbox interface {
	Next() (mqtt.Message, bool)
	Dropped() uint64
}

// Handler consumes one inbound command. Satisfied by *command.Decoder.
type Handler interface {
	Handle(topic string, payload []byte) error
}

// Connectivity is the link and session state machine.
type Connectivity interface {
	Tick(now time.Time)
	SessionUp() bool
	Snapshot() connectivity.State
}

// Gate is the mode arbiter as seen by the loop.
type Gate interface {
	UpdateInProgress() bool
	CurrentUpdate() string
	Tick(ctx context.Context, now time.Time) error

	// Release runs on every orderly exit of the loop.
	Release(ctx context.Context) error
}

// Updater applies finished update sessions.
type Updater interface {
	Pump(ctx context.Context) error
}

// Telemetry mirrors activity to a metrics sink.
type Telemetry interface {
	RecordQueueLength(length int)
	RecordTransmit(code uint64, bitLength uint, protocol int)
	RecordReceive(code uint64, bitLength uint, protocol int)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds everything the loop drives. Queue, Decoder, Transmitter,
// Receiver, Connectivity, Publisher, Inbox and Mode are required.
type Options struct {
	Queue        *command.Queue
	Decoder      Handler
	Transmitter  rf.Transmitter
	Receiver     rf.Receiver
	Connectivity Connectivity
	Publisher    Publisher
	Inbox        Inbox
	Mode         Gate
	Topics       mqtt.Topics

	// Updates is optional; without it no update session is ever applied.
	Updates Updater

	// Telemetry is optional.
	Telemetry Telemetry

	// PumpBatch bounds inbound messages delivered per tick.
	PumpBatch int

	// TickInterval is the pause after a tick that found work.
	TickInterval time.Duration

	// IdleDelay is the pause after a tick that found the queue empty.
	IdleDelay time.Duration

	Logger Logger
}

// TickResult reports what one tick did.
type TickResult struct {
	// Received is set when a code heard on air was published.
	Received bool

	// Transmitted is set when a request was taken from the queue.
	Transmitted bool

	// Delivered counts inbound messages handed to the decoder.
	Delivered int

	// Idle is set when the queue was empty.
	Idle bool

	// Suspended is set when an update session skipped normal operation.
	Suspended bool
}

// Stats are cumulative loop counters.
type Stats struct {
	Received        uint64 `json:"received"`
	UnknownEncoding uint64 `json:"unknown_encoding"`
	Transmitted     uint64 `json:"transmitted"`
	TransmitErrors  uint64 `json:"transmit_errors"`
	Accepted        uint64 `json:"accepted"`
	Rejected        uint64 `json:"rejected"`
	QueueFull       uint64 `json:"queue_full"`
	PublishDropped  uint64 `json:"publish_dropped"`
	InboxDropped    uint64 `json:"inbox_dropped"`
}

// Status is a point-in-time report for the status endpoint.
type Status struct {
	Link             string `json:"link"`
	Session          string `json:"session"`
	WifiLinked       bool   `json:"wifi_linked"`
	LastError        string `json:"last_error,omitempty"`
	QueueLength      int    `json:"queue_length"`
	QueueCapacity    int    `json:"queue_capacity"`
	UpdateInProgress bool   `json:"update_in_progress"`
	UpdateID         string `json:"update_id,omitempty"`
	Stats            Stats  `json:"stats"`
}

type counters struct {
	received        atomic.Uint64
	unknownEncoding atomic.Uint64
	transmitted     atomic.Uint64
	transmitErrors  atomic.Uint64
	accepted        atomic.Uint64
	rejected        atomic.Uint64
	queueFull       atomic.Uint64
	publishDropped  atomic.Uint64
}

// Bridge owns the core state and runs the cooperative tick loop. Tick and
// Run must be called from one goroutine; Status and Stats from any.
type Bridge struct {
	queue     *command.Queue
	decoder   Handler
	tx        rf.Transmitter
	rx        rf.Receiver
	conn      Connectivity
	publisher Publisher
	inbox     Inbox
	mode      Gate
	updates   Updater
	telemetry Telemetry
	topics    mqtt.Topics
	logger    Logger

	pumpBatch    int
	tickInterval time.Duration
	idleDelay    time.Duration

	stats counters
}

// New creates a Bridge.
//
// Parameters:
//   - opts: Loop collaborators and timing
//
// Returns:
//   - *Bridge: Ready for Run or Tick
//   - error: If a required collaborator is missing
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Queue == nil:
		return nil, fmt.Errorf("queue is required")
	case opts.Decoder == nil:
		return nil, fmt.Errorf("decoder is required")
	case opts.Transmitter == nil:
		return nil, fmt.Errorf("transmitter is required")
	case opts.Receiver == nil:
		return nil, fmt.Errorf("receiver is required")
	case opts.Connectivity == nil:
		return nil, fmt.Errorf("connectivity is required")
	case opts.Publisher == nil:
		return nil, fmt.Errorf("publisher is required")
	case opts.Inbox == nil:
		return nil, fmt.Errorf("inbox is required")
	case opts.Mode == nil:
		return nil, fmt.Errorf("mode gate is required")
	}

	b := &Bridge{
		queue:        opts.Queue,
		decoder:      opts.Decoder,
		tx:           opts.Transmitter,
		rx:           opts.Receiver,
		conn:         opts.Connectivity,
		publisher:    opts.Publisher,
		inbox:        opts.Inbox,
		mode:         opts.Mode,
		updates:      opts.Updates,
		telemetry:    opts.Telemetry,
		topics:       opts.Topics,
		logger:       opts.Logger,
		pumpBatch:    opts.PumpBatch,
		tickInterval: opts.TickInterval,
		idleDelay:    opts.IdleDelay,
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.pumpBatch <= 0 {
		b.pumpBatch = DefaultPumpBatch
	}
	if b.tickInterval <= 0 {
		b.tickInterval = DefaultTickInterval
	}
	if b.idleDelay <= 0 {
		b.idleDelay = DefaultIdleDelay
	}
	return b, nil
}

// Run ticks until ctx is cancelled or an applied update asks for a
// restart, in which case it returns mode.ErrRestartRequested.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("tick loop started",
		"queue_capacity", b.queue.Cap(),
		"idle_delay", b.idleDelay,
		"tick_interval", b.tickInterval,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.release(ctx)
			b.logger.Info("tick loop stopped")
			return nil
		case <-timer.C:
		}

		res, err := b.Tick(ctx, time.Now())
		if errors.Is(err, mode.ErrRestartRequested) {
			b.release(ctx)
			return err
		}

		if res.Idle || res.Suspended {
			timer.Reset(b.idleDelay)
		} else {
			timer.Reset(b.tickInterval)
		}
	}
}

// Tick runs one loop iteration in fixed order: connectivity, RF receive,
// one queue drain step, inbound pump, update pump. While an update session
// holds the mode flag only the update pump runs. An upload may take the
// flag on the HTTP goroutine mid-tick, so it is checked again before the
// drain and before the pump.
func (b *Bridge) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var res TickResult

	if b.mode.UpdateInProgress() {
		res.Suspended = true
		return res, b.pumpUpdates(ctx)
	}

	if err := b.mode.Tick(ctx, now); err != nil {
		b.logger.Warn("boot marker not cleared", "error", err)
	}

	b.conn.Tick(now)

	res.Received = b.receive()

	if b.mode.UpdateInProgress() {
		res.Suspended = true
		return res, b.pumpUpdates(ctx)
	}
	res.Transmitted = b.drain(ctx)
	res.Idle = !res.Transmitted

	if b.mode.UpdateInProgress() {
		res.Suspended = true
		return res, b.pumpUpdates(ctx)
	}
	res.Delivered = b.pump()

	return res, b.pumpUpdates(ctx)
}

// release clears the boot marker so the coming restart is not read as a
// double reset.
func (b *Bridge) release(ctx context.Context) {
	if err := b.mode.Release(context.WithoutCancel(ctx)); err != nil {
		b.logger.Warn("boot marker not released", "error", err)
	}
}

// receive publishes one code heard on air. Codes bypass the queue.
func (b *Bridge) receive() bool {
	rec, ok := b.rx.Receive()
	if !ok {
		return false
	}

	if rec.Value == 0 {
		b.stats.unknownEncoding.Add(1)
		b.logger.Debug("received code with unknown encoding", "error", rf.ErrUnknownEncoding,
			"bit_length", rec.BitLength, "protocol", rec.Protocol)
		return false
	}

	b.stats.received.Add(1)
	b.logger.Debug("code received", "code", rec.Value, "bit_length", rec.BitLength, "protocol", rec.Protocol)
	b.publish(b.topics.CodeReceived(), strconv.FormatUint(rec.Value, 10))
	if b.telemetry != nil {
		b.telemetry.RecordReceive(rec.Value, rec.BitLength, rec.Protocol)
	}
	return true
}

// drain transmits at most one queued request and reports the new length.
// Requests stay queued while the transmitter reports it is not ready.
func (b *Bridge) drain(ctx context.Context) bool {
	if r, ok := b.tx.(rf.Readiness); ok && !r.Ready() {
		return false
	}

	req, ok := b.queue.Dequeue()
	if !ok {
		return false
	}

	b.logger.Debug("sending code", "code", req.Code, "bit_length", req.BitLength,
		"protocol", req.Protocol, "repeat", req.RepeatCount)

	if err := b.tx.Transmit(ctx, req.Code, req.BitLength, req.Protocol, req.RepeatCount); err != nil {
		b.stats.transmitErrors.Add(1)
		b.logger.Error("transmit failed", "code", req.Code, "protocol", req.Protocol, "error", err)
	} else {
		b.stats.transmitted.Add(1)
		if b.telemetry != nil {
			b.telemetry.RecordTransmit(req.Code, req.BitLength, req.Protocol)
		}
	}

	length := b.queue.Len()
	b.publish(b.topics.QueueLength(), strconv.Itoa(length))
	if b.telemetry != nil {
		b.telemetry.RecordQueueLength(length)
	}
	return true
}

// pump hands buffered inbound messages to the decoder while the session is up.
func (b *Bridge) pump() int {
	if !b.conn.SessionUp() {
		return 0
	}

	delivered := 0
	for delivered < b.pumpBatch {
		msg, ok := b.inbox.Next()
		if !ok {
			break
		}
		delivered++

		err := b.decoder.Handle(msg.Topic, msg.Payload)
		switch {
		case err == nil:
			b.stats.accepted.Add(1)
		case errors.Is(err, command.ErrQueueFull):
			b.stats.queueFull.Add(1)
		case errors.Is(err, command.ErrUnknownTopic):
			b.logger.Debug("ignoring message", "topic", msg.Topic)
		default:
			b.stats.rejected.Add(1)
		}
	}
	return delivered
}

func (b *Bridge) pumpUpdates(ctx context.Context) error {
	if b.updates == nil {
		return nil
	}
	return b.updates.Pump(ctx)
}

// publish is best effort: nothing is queued while the session is down.
func (b *Bridge) publish(topic, payload string) {
	if !b.conn.SessionUp() {
		b.stats.publishDropped.Add(1)
		return
	}
	if err := b.publisher.Publish(topic, []byte(payload), false); err != nil {
		b.stats.publishDropped.Add(1)
		b.logger.Debug("publish dropped", "topic", topic, "error", err)
	}
}

// Stats returns the loop counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Received:        b.stats.received.Load(),
		UnknownEncoding: b.stats.unknownEncoding.Load(),
		Transmitted:     b.stats.transmitted.Load(),
		TransmitErrors:  b.stats.transmitErrors.Load(),
		Accepted:        b.stats.accepted.Load(),
		Rejected:        b.stats.rejected.Load(),
		QueueFull:       b.stats.queueFull.Load(),
		PublishDropped:  b.stats.publishDropped.Load(),
		InboxDropped:    b.inbox.Dropped(),
	}
}

// Status reports connectivity, queue and mode state. Safe from any goroutine.
func (b *Bridge) Status() Status {
	st := b.conn.Snapshot()
	s := Status{
		Link:             st.Link.String(),
		Session:          st.Session.String(),
		WifiLinked:       st.WifiLinked,
		QueueLength:      b.queue.Len(),
		QueueCapacity:    b.queue.Cap(),
		UpdateInProgress: b.mode.UpdateInProgress(),
		UpdateID:         b.mode.CurrentUpdate(),
		Stats:            b.Stats(),
	}
	if st.LastError != nil {
		s.LastError = st.LastError.Error()
	}
	return s
}
