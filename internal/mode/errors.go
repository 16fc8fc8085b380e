package mode

import "errors"

var (
	// ErrUpdateInProgress is returned by BeginUpdate while another update
	// session holds the flag.
	ErrUpdateInProgress = errors.New("mode: update in progress")

	// ErrRestartRequested asks the process to exit so the supervisor starts
	// it again: after provisioning, or after an update was applied.
	ErrRestartRequested = errors.New("mode: restart requested")
)
