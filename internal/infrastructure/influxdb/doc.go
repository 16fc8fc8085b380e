// Package influxdb mirrors bridge telemetry into InfluxDB v2.
//
// Points written:
//   - rf_queue (length) after every transmission
//   - rf_code (code, bit_length, protocol; tag direction=tx|rx)
//   - wifi_signal (rssi_dbm) on every signal telemetry period
//
// Every point carries a device tag. The integration is optional; Connect
// returns ErrDisabled when influxdb.enabled is false and the bridge runs
// without it.
package influxdb
