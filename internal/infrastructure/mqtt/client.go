package mqtt

import (
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// Token is a pending broker operation.
//
// It is satisfied by paho's Token. Callers poll Done without blocking and
// read Error once Done is closed.
type Token interface {
	Done() <-chan struct{}
	Error() error
}

// Message is an inbound message copied out of the paho callback.
type Message struct {
	Topic   string
	Payload []byte
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
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

// Client wraps paho.mqtt.golang for a tick-driven owner.
//
// Nothing on Client blocks the caller except Close. Connect and Subscribe
// hand back pending tokens, Publish never waits for acknowledgement, and
// inbound messages are buffered in a bounded inbox that the owner drains
// with Next. Reconnection is left to the owner: paho's auto-reconnect is
// disabled so the connectivity state machine sees every session loss.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	inbox   chan Message
	dropped atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a disconnected client.
//
// The last will (retained "offline" on the availability topic) is
// registered with the broker on every connect.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - topics: Topic builder carrying the device prefix
//
// Returns:
//   - *Client: Client ready for Connect
func New(cfg config.MQTTConfig, topics Topics) *Client {
	c := &Client{
		cfg:    cfg,
		topics: topics,
		inbox:  make(chan Message, inboxSize(cfg.InboxSize)),
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg, topics)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.getLogger().Warn("mqtt connection lost", "error", err)
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.offer(msg.Topic(), msg.Payload())
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// SetLogger sets a logger for connection and inbox events.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Connect starts a connection attempt and returns immediately.
func (c *Client) Connect() Token {
	c.getLogger().Debug("mqtt connecting", "broker", brokerURL(c.cfg))
	return c.client.Connect()
}

// Subscribe requests subscriptions for all topics at the configured QoS.
// Matching messages land in the inbox.
func (c *Client) Subscribe(topics ...string) Token {
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = byte(c.cfg.QoS)
	}

	return c.client.SubscribeMultiple(filters, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.offer(msg.Topic(), msg.Payload())
	})
}

// IsConnected reports whether paho currently holds an open session.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Close publishes a graceful offline status and disconnects.
//
// Returns:
//   - error: always nil; a closed connection is not an error
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), willQoS, true, PayloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// Drop closes the current connection without publishing offline and
// without waiting for in-flight work.
func (c *Client) Drop() {
	if c.client == nil {
		return
	}
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(0)
	}
}

// Next pops one buffered inbound message.
func (c *Client) Next() (Message, bool) {
	select {
	case msg := <-c.inbox:
		return msg, true
	default:
		return Message{}, false
	}
}

// Pending returns the number of buffered inbound messages.
func (c *Client) Pending() int {
	return len(c.inbox)
}

// Dropped returns how many inbound messages were discarded on a full inbox.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// offer copies a message into the inbox, dropping it when the inbox is full.
// Called from paho goroutines.
func (c *Client) offer(topic string, payload []byte) {
	msg := Message{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
	}
	select {
	case c.inbox <- msg:
	default:
		c.dropped.Add(1)
		c.getLogger().Warn("mqtt inbox full, message dropped", "topic", topic)
	}
}

func inboxSize(n int) int {
	if n <= 0 {
		return defaultInboxSize
	}
	return n
}
