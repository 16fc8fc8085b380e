// Package mode arbitrates between the bridge's operating modes.
//
// Normal operation runs the tick loop. An update session suspends it: while
// the update flag is set nothing is enqueued, dequeued or transmitted, and the
// connectivity state machine does not advance. A double reset (two boots
// within the reset window) skips normal operation entirely and runs the
// provisioning flow once, after which the process asks to be restarted.
//
// The boot marker behind double-reset detection lives in a MarkerStore; the
// SQLite implementation is store.SQLiteStore.
package mode
