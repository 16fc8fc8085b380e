package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementQueue  = "rf_queue"
	measurementCode   = "rf_code"
	measurementSignal = "wifi_signal"
)

// RecordQueueLength writes the queue depth after a transmission.
func (c *Client) RecordQueueLength(length int) {
	c.writePoint(measurementQueue, nil, map[string]interface{}{
		"length": length,
	})
}

// RecordTransmit writes one transmitted code.
func (c *Client) RecordTransmit(code uint64, bitLength uint, protocol int) {
	c.writeCode("tx", code, bitLength, protocol)
}

// RecordReceive writes one code heard on air.
func (c *Client) RecordReceive(code uint64, bitLength uint, protocol int) {
	c.writeCode("rx", code, bitLength, protocol)
}

// RecordSignal writes the link signal strength in dBm.
func (c *Client) RecordSignal(dBm int) {
	c.writePoint(measurementSignal, nil, map[string]interface{}{
		"rssi_dbm": dBm,
	})
}

func (c *Client) writeCode(direction string, code uint64, bitLength uint, protocol int) {
	c.writePoint(measurementCode,
		map[string]string{"direction": direction},
		map[string]interface{}{
			"code":       code,
			"bit_length": bitLength,
			"protocol":   protocol,
		})
}

// writePoint adds the device tag and hands the point to the batching writer.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	all := map[string]string{"device": c.deviceID}
	for k, v := range tags {
		all[k] = v
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, all, fields, time.Now()))
}
