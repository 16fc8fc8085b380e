// Package api implements the bridge's local HTTP API.
//
// This package provides:
//   - liveness and status endpoints for monitoring
//   - the update transport: image upload and update history
//   - middleware stack (request ID, logging, recovery)
//
// # Security
//
// Update endpoints require the shared token from update.token, sent as
// "Authorization: Bearer <token>" or "X-Update-Token". With no token
// configured they refuse every request.
//
// # Concurrency
//
// Handlers run on net/http goroutines. They touch the tick loop only through
// bridge.Bridge.Status, which is safe for concurrent use, and through the
// update manager, which takes the update flag before staging anything.
package api
