package connectivity

import "errors"

// Connectivity failures, recorded in State.LastError and retried.
// None of them is fatal.
var (
	// ErrLink means the network link could not be acquired.
	ErrLink = errors.New("connectivity: link unavailable")

	// ErrSession means a broker connect or subscribe attempt failed.
	ErrSession = errors.New("connectivity: session failed")

	// ErrSessionLost means an established broker session dropped.
	ErrSessionLost = errors.New("connectivity: session lost")
)
