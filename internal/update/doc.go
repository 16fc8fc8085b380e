// Package update receives, verifies and applies new bridge images.
//
// An update session holds mode.Arbiter's update flag from the first byte of
// the upload. While it is held the tick loop suspends normal operation and
// only calls Pump. A session ends in one of three ways:
//
//   - the upload fails (size, digest, I/O): the flag is released and normal
//     operation resumes on the next tick;
//   - the install fails: same as above;
//   - the install succeeds: Pump returns mode.ErrRestartRequested and the
//     process exits for its supervisor to restart it.
//
// Every session is recorded in the update history.
package update
