// Package mqtt provides the broker session used by the RF bridge.
//
// The client never blocks the tick loop: Connect and Subscribe return
// pending tokens that the connectivity state machine polls, Publish is
// fire-and-forget, and inbound messages are copied into a bounded inbox
// drained by the bridge once per tick.
//
// Availability is signalled on <prefix>/status: the broker publishes the
// retained last will "offline" on abnormal disconnect, the state machine
// publishes "online" once subscribed, and Close publishes "offline".
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.NewTopics(cfg.Device.ID))
//	token := client.Connect()
//	// ... later, on a tick
//	select {
//	case <-token.Done():
//	    err := token.Error()
//	default:
//	}
package mqtt
