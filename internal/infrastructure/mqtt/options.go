package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt inside paho.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the wait for the graceful offline publish on Close.
	defaultPublishTimeout = 2 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive applies when the config leaves keep_alive unset.
	defaultKeepAlive = 10 * time.Second

	defaultInboxSize = 64

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// willQoS is used for the last will and the availability messages.
	willQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Availability payloads, published retained on Topics.Status.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// buildClientOptions creates paho options for the bridge session.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID, defaulting to the device id
//   - Authentication credentials (if provided)
//   - Keepalive and the retained offline last will
//
// Auto-reconnect and connect-retry stay off; the caller owns retries.
func buildClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = strings.TrimPrefix(topics.Prefix, "/")
	}
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	opts.SetWill(topics.Status(), PayloadOffline, willQoS, true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}
