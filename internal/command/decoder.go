package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Protocol used for switch-by-address commands.
const typeAProtocol = 1

// Encoder turns a switch address into a raw code.
type Encoder interface {
	Encode(group, device string, on bool) (code uint64, bitLength uint, err error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// Queue receives decoded requests (required).
	Queue *Queue

	// Encoder resolves switch-by-address commands (required).
	Encoder Encoder

	// SwitchTopic carries switch-by-address messages.
	SwitchTopic string

	// RawTopic carries raw-code messages.
	RawTopic string

	// MaxRepeat caps repeatTransmit. Zero means MaxRepeatCount.
	MaxRepeat int

	Logger Logger
}

// Decoder validates inbound bus messages and enqueues the resulting
// transmit requests. A rejected message never touches the queue.
type Decoder struct {
	queue       *Queue
	encoder     Encoder
	switchTopic string
	rawTopic    string
	maxRepeat   int
	logger      Logger
}

// NewDecoder creates a decoder.
//
// Returns:
//   - *Decoder: ready to Handle messages
//   - error: if a required dependency is missing
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	if opts.Queue == nil {
		return nil, errors.New("command: queue is required")
	}
	if opts.Encoder == nil {
		return nil, errors.New("command: encoder is required")
	}
	if opts.SwitchTopic == "" || opts.RawTopic == "" {
		return nil, errors.New("command: both command topics are required")
	}
	maxRepeat := opts.MaxRepeat
	if maxRepeat == 0 {
		maxRepeat = MaxRepeatCount
	}
	if maxRepeat < 1 || maxRepeat > MaxRepeatCount {
		return nil, fmt.Errorf("command: max repeat %d outside 1..%d", opts.MaxRepeat, MaxRepeatCount)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Decoder{
		queue:       opts.Queue,
		encoder:     opts.Encoder,
		switchTopic: opts.SwitchTopic,
		rawTopic:    opts.RawTopic,
		maxRepeat:   maxRepeat,
		logger:      logger,
	}, nil
}

// Handle decodes one message and enqueues the request it describes.
//
// The queue is checked before the payload is parsed, so a full queue
// rejects messages without decode work.
//
// Returns:
//   - error: ErrUnknownTopic, ErrQueueFull or ErrDecode (wrapped), nil on enqueue
func (d *Decoder) Handle(topic string, payload []byte) error {
	var decode func(fields) (TransmitRequest, error)
	switch topic {
	case d.switchTopic:
		decode = d.decodeSwitch
	case d.rawTopic:
		decode = decodeRaw
	default:
		d.logger.Debug("ignoring message on unknown topic", "topic", topic)
		return ErrUnknownTopic
	}

	if d.queue.Full() {
		d.logger.Warn("queue full, command rejected", "topic", topic, "capacity", d.queue.Cap())
		return ErrQueueFull
	}

	var f fields
	if err := json.Unmarshal(payload, &f); err != nil {
		d.logger.Warn("command payload is not a JSON object", "topic", topic, "error", err)
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	req, err := decode(f)
	if err == nil && req.RepeatCount > d.maxRepeat {
		err = fmt.Errorf("%w: repeat count %d above limit %d", ErrDecode, req.RepeatCount, d.maxRepeat)
	}
	if err != nil {
		d.logger.Warn("command rejected", "topic", topic, "error", err)
		return err
	}

	if err := d.queue.Enqueue(req); err != nil {
		d.logger.Warn("queue full, command rejected", "topic", topic, "capacity", d.queue.Cap())
		return err
	}

	d.logger.Debug("command queued",
		"code", req.Code,
		"bit_length", req.BitLength,
		"protocol", req.Protocol,
		"repeat", req.RepeatCount,
		"queue_length", d.queue.Len(),
	)
	return nil
}

// decodeSwitch handles {"group","device","repeatTransmit","switchOnOff"}.
func (d *Decoder) decodeSwitch(f fields) (TransmitRequest, error) {
	var (
		group, device string
		repeat        int
		on            bool
	)
	if err := f.require("group", &group); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("device", &device); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("repeatTransmit", &repeat); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("switchOnOff", &on); err != nil {
		return TransmitRequest{}, err
	}

	code, bitLength, err := d.encoder.Encode(group, device, on)
	if err != nil {
		return TransmitRequest{}, fmt.Errorf("%w: encoding %s/%s: %w", ErrDecode, group, device, err)
	}
	return NewTransmitRequest(code, bitLength, typeAProtocol, repeat)
}

// decodeRaw handles {"code","codeLength","protocol","repeatTransmit"}.
func decodeRaw(f fields) (TransmitRequest, error) {
	var (
		code             uint64
		bitLength        uint
		protocol, repeat int
	)
	if err := f.require("code", &code); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("codeLength", &bitLength); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("protocol", &protocol); err != nil {
		return TransmitRequest{}, err
	}
	if err := f.require("repeatTransmit", &repeat); err != nil {
		return TransmitRequest{}, err
	}
	return NewTransmitRequest(code, bitLength, protocol, repeat)
}

// fields holds the top-level members of a command object, undecoded.
type fields map[string]json.RawMessage

// require decodes the named member into dst. A missing member, a JSON null
// or a type mismatch is ErrDecode.
func (f fields) require(key string, dst any) error {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: missing field %q", ErrDecode, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q: %w", ErrDecode, key, err)
	}
	return nil
}
