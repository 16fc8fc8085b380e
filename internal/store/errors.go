package store

import "errors"

// ErrNotFound is returned when an update record does not exist.
var ErrNotFound = errors.New("store: not found")
