package store

import "time"

// UpdateStatus is the outcome of an update session.
type UpdateStatus string

const (
	UpdateRunning UpdateStatus = "running"
	UpdateApplied UpdateStatus = "applied"
	UpdateFailed  UpdateStatus = "failed"
)

// UpdateRecord is one row of the update history.
type UpdateRecord struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	SizeBytes  int64        `json:"size_bytes"`
	SHA256     string       `json:"sha256,omitempty"`
	Status     UpdateStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}
