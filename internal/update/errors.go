package update

import "errors"

var (
	// ErrTooLarge is returned when an image exceeds update.max_size.
	ErrTooLarge = errors.New("update: image too large")

	// ErrEmpty is returned for a zero-length image.
	ErrEmpty = errors.New("update: empty image")

	// ErrChecksumMismatch is returned when the image does not hash to the
	// digest the client declared.
	ErrChecksumMismatch = errors.New("update: checksum mismatch")
)
