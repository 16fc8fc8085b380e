// Package store persists the bridge's small amount of durable state in
// SQLite: the boot marker used for double-reset detection and the history
// of update sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteStore implements the mode arbiter's marker store and the update
// history on one SQLite connection. The schema is created by the
// migrations package.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStore: Store ready for use
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// =============================================================================
// Boot marker
// =============================================================================

// ReadMarker returns the time of the last unconfirmed boot.
//
// Returns:
//   - time.Time: When the marker was written
//   - bool: false when no marker exists
//   - error: Database failure
func (s *SQLiteStore) ReadMarker(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, "SELECT booted_at FROM boot_marker WHERE id = 1").Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading boot marker: %w", err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// WriteMarker records a boot at t, replacing any earlier marker.
func (s *SQLiteStore) WriteMarker(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO boot_marker (id, booted_at) VALUES (1, ?)",
		t.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing boot marker: %w", err)
	}
	return nil
}

// ClearMarker removes the marker. Clearing an absent marker is not an error.
func (s *SQLiteStore) ClearMarker(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM boot_marker WHERE id = 1"); err != nil {
		return fmt.Errorf("clearing boot marker: %w", err)
	}
	return nil
}

// =============================================================================
// Update history
// =============================================================================

// StartUpdate inserts a running update session.
func (s *SQLiteStore) StartUpdate(ctx context.Context, id string, startedAt time.Time) error {
	if id == "" {
		return fmt.Errorf("update id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO update_history (id, started_at, status) VALUES (?, ?, ?)",
		id, startedAt.UnixMilli(), string(UpdateRunning),
	)
	if err != nil {
		return fmt.Errorf("inserting update record: %w", err)
	}
	return nil
}

// FinishUpdate records the outcome of a session started with StartUpdate.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: ID, FinishedAt, SizeBytes, SHA256, Status and Error are written
//
// Returns:
//   - error: ErrNotFound for an unknown id, otherwise the database error
func (s *SQLiteStore) FinishUpdate(ctx context.Context, rec UpdateRecord) error {
	finished := time.Now()
	if rec.FinishedAt != nil {
		finished = *rec.FinishedAt
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE update_history
		 SET finished_at = ?, size_bytes = ?, sha256 = ?, status = ?, error = ?
		 WHERE id = ?`,
		finished.UnixMilli(), rec.SizeBytes, rec.SHA256, string(rec.Status), rec.Error, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// ListUpdates returns recent update sessions, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
func (s *SQLiteStore) ListUpdates(ctx context.Context, limit int) ([]UpdateRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, size_bytes, sha256, status, error
		 FROM update_history ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying update history: %w", err)
	}
	defer rows.Close()

	records := []UpdateRecord{}
	for rows.Next() {
		var rec UpdateRecord
		var started int64
		var finished sql.NullInt64
		var status string

		if err := rows.Scan(&rec.ID, &started, &finished, &rec.SizeBytes,
			&rec.SHA256, &status, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning update record: %w", err)
		}

		rec.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			rec.FinishedAt = &t
		}
		rec.Status = UpdateStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating update history: %w", err)
	}
	return records, nil
}
