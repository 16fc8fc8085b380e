// Package bridge runs the cooperative tick loop that ties the command
// queue, the RF driver and the broker session together.
//
// Each tick, in order:
//
//  1. mode gate: during an update session only step 6 runs
//  2. connectivity state machine step
//  3. RF receive: one code heard on air is published immediately
//  4. queue drain: at most one request is transmitted, then the queue
//     length is published
//  5. inbound pump: buffered broker messages go to the decoder
//  6. update pump: a staged update is applied
//
// Nothing in a tick waits on the network. Transmission is the only step
// that takes real time, bounded by the airtime of one code.
//
// Thread Safety: Tick and Run belong to one goroutine. Status and Stats may
// be called from any goroutine.
package bridge
