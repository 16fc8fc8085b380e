package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/database"
	"github.com/nerrad567/rfbridge/migrations"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "rfbridge.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db.DB)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMarker_Lifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, ok, err := s.ReadMarker(ctx); err != nil || ok {
		t.Fatalf("ReadMarker() on empty store = (ok %v, err %v), want (false, nil)", ok, err)
	}

	if err := s.WriteMarker(ctx, t0); err != nil {
		t.Fatalf("WriteMarker() error = %v", err)
	}
	got, ok, err := s.ReadMarker(ctx)
	if err != nil || !ok {
		t.Fatalf("ReadMarker() = (ok %v, err %v)", ok, err)
	}
	if !got.Equal(t0) {
		t.Errorf("ReadMarker() = %v, want %v", got, t0)
	}

	later := t0.Add(time.Minute)
	if err := s.WriteMarker(ctx, later); err != nil {
		t.Fatalf("WriteMarker() replace error = %v", err)
	}
	if got, _, _ := s.ReadMarker(ctx); !got.Equal(later) {
		t.Errorf("ReadMarker() after replace = %v, want %v", got, later)
	}

	if err := s.ClearMarker(ctx); err != nil {
		t.Fatalf("ClearMarker() error = %v", err)
	}
	if _, ok, _ := s.ReadMarker(ctx); ok {
		t.Error("marker still present after ClearMarker")
	}
	if err := s.ClearMarker(ctx); err != nil {
		t.Errorf("ClearMarker() on empty store error = %v", err)
	}
}

func TestUpdateHistory(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.StartUpdate(ctx, "upd-1", t0); err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}
	if err := s.StartUpdate(ctx, "upd-2", t0.Add(time.Hour)); err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}

	finished := t0.Add(30 * time.Second)
	err := s.FinishUpdate(ctx, UpdateRecord{
		ID:         "upd-1",
		FinishedAt: &finished,
		SizeBytes:  4096,
		SHA256:     "abc123",
		Status:     UpdateApplied,
	})
	if err != nil {
		t.Fatalf("FinishUpdate() error = %v", err)
	}

	records, err := s.ListUpdates(ctx, 0)
	if err != nil {
		t.Fatalf("ListUpdates() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListUpdates() returned %d records, want 2", len(records))
	}

	// Newest first.
	if records[0].ID != "upd-2" || records[0].Status != UpdateRunning || records[0].FinishedAt != nil {
		t.Errorf("records[0] = %+v, want running upd-2", records[0])
	}
	r := records[1]
	if r.ID != "upd-1" || r.Status != UpdateApplied || r.SizeBytes != 4096 || r.SHA256 != "abc123" {
		t.Errorf("records[1] = %+v", r)
	}
	if r.FinishedAt == nil || !r.FinishedAt.Equal(finished) {
		t.Errorf("records[1].FinishedAt = %v, want %v", r.FinishedAt, finished)
	}
	if !r.StartedAt.Equal(t0) {
		t.Errorf("records[1].StartedAt = %v, want %v", r.StartedAt, t0)
	}
}

func TestUpdateHistory_Limit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if err := s.StartUpdate(ctx, id, t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("StartUpdate(%s) error = %v", id, err)
		}
	}

	records, err := s.ListUpdates(ctx, 2)
	if err != nil {
		t.Fatalf("ListUpdates() error = %v", err)
	}
	if len(records) != 2 || records[0].ID != "c" || records[1].ID != "b" {
		t.Errorf("ListUpdates(2) = %+v, want [c b]", records)
	}
}

func TestFinishUpdate_NotFound(t *testing.T) {
	s := setupStore(t)

	err := s.FinishUpdate(context.Background(), UpdateRecord{ID: "missing", Status: UpdateFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishUpdate() error = %v, want ErrNotFound", err)
	}
}

func TestStartUpdate_Validation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.StartUpdate(ctx, "", t0); err == nil {
		t.Error("StartUpdate() with empty id error = nil")
	}
	if err := s.StartUpdate(ctx, "dup", t0); err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}
	if err := s.StartUpdate(ctx, "dup", t0); err == nil {
		t.Error("StartUpdate() with duplicate id error = nil")
	}
}
