package provision

import "errors"

var (
	// ErrTimeout is returned when no configuration arrives before the
	// portal's deadline.
	ErrTimeout = errors.New("provisioning timed out")

	// ErrInvalidConfig is returned for an uploaded document that fails to
	// parse or validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)
