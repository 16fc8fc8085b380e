package mqtt

// Topic suffixes below the device prefix.
const (
	suffixSendTypeA    = "/sender/sendtypea"
	suffixSend         = "/sender/send"
	suffixCodeReceived = "/events/codereceived"
	suffixQueueLength  = "/queue/length"
	suffixStatus       = "/status"
	suffixRSSI         = "/wifi/rssi"
)

// Topics provides builders for the bridge's MQTT topics.
// Every topic is the device prefix followed by a fixed suffix:
//
//	topics := mqtt.NewTopics("garage")
//	topics.SendTypeA() // "/garage/sender/sendtypea"
type Topics struct {
	// Prefix is "/<device id>".
	Prefix string
}

// NewTopics returns the topic builder for a device id.
func NewTopics(deviceID string) Topics {
	return Topics{Prefix: "/" + deviceID}
}

// =============================================================================
// Inbound
// =============================================================================

// SendTypeA carries switch-by-address commands.
func (t Topics) SendTypeA() string { return t.Prefix + suffixSendTypeA }

// Send carries raw-code commands.
func (t Topics) Send() string { return t.Prefix + suffixSend }

// Commands returns both inbound command topics.
func (t Topics) Commands() []string {
	return []string{t.SendTypeA(), t.Send()}
}

// =============================================================================
// Outbound
// =============================================================================

// CodeReceived carries codes heard on air.
func (t Topics) CodeReceived() string { return t.Prefix + suffixCodeReceived }

// QueueLength carries the queue depth after each transmission.
func (t Topics) QueueLength() string { return t.Prefix + suffixQueueLength }

// Status is the retained availability topic and the last-will topic.
func (t Topics) Status() string { return t.Prefix + suffixStatus }

// RSSI carries the retained link signal strength in dBm.
func (t Topics) RSSI() string { return t.Prefix + suffixRSSI }
