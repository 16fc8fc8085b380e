package update

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/mode"
	"github.com/nerrad567/rfbridge/internal/store"
)

// memoryHistory is an in-memory History.
type memoryHistory struct {
	started  []string
	finished []store.UpdateRecord
}

func (h *memoryHistory) StartUpdate(_ context.Context, id string, _ time.Time) error {
	h.started = append(h.started, id)
	return nil
}

func (h *memoryHistory) FinishUpdate(_ context.Context, rec store.UpdateRecord) error {
	h.finished = append(h.finished, rec)
	return nil
}

func (h *memoryHistory) ListUpdates(context.Context, int) ([]store.UpdateRecord, error) {
	return h.finished, nil
}

type fixture struct {
	m       *Manager
	arbiter *mode.Arbiter
	history *memoryHistory
	cfg     config.UpdateConfig
}

func newFixture(t *testing.T, modify func(*config.UpdateConfig)) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg := config.UpdateConfig{
		Enabled:     true,
		StagingDir:  filepath.Join(dir, "staging"),
		InstallPath: filepath.Join(dir, "rfbridge"),
		MaxSize:     1024,
	}
	if modify != nil {
		modify(&cfg)
	}

	f := &fixture{
		arbiter: mode.NewArbiter(mode.ArbiterOptions{}),
		history: &memoryHistory{},
		cfg:     cfg,
	}
	m, err := NewManager(Options{Config: cfg, Flag: f.arbiter, History: f.history})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	f.m = m
	return f
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func partFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.part"))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	return matches
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(Options{Config: config.UpdateConfig{StagingDir: "x"}}); err == nil {
		t.Error("NewManager() without flag error = nil")
	}
	if _, err := NewManager(Options{Flag: mode.NewArbiter(mode.ArbiterOptions{})}); err == nil {
		t.Error("NewManager() without staging dir error = nil")
	}
}

func TestReceiveAndPump(t *testing.T) {
	f := newFixture(t, nil)
	image := []byte("#!/bin/sh\necho new bridge\n")
	ctx := context.Background()

	rec, err := f.m.Receive(ctx, bytes.NewReader(image), strings.ToUpper(digest(image)))
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if rec.Status != store.UpdateRunning || rec.SizeBytes != int64(len(image)) || rec.SHA256 != digest(image) {
		t.Errorf("Receive() record = %+v", rec)
	}
	if !f.arbiter.UpdateInProgress() || f.arbiter.CurrentUpdate() != rec.ID {
		t.Fatal("update flag not held while the image is staged")
	}
	if len(f.history.started) != 1 || f.history.started[0] != rec.ID {
		t.Errorf("history started = %v", f.history.started)
	}

	staged, err := os.ReadFile(filepath.Join(f.cfg.StagingDir, StagedName))
	if err != nil {
		t.Fatalf("staged image missing: %v", err)
	}
	if !bytes.Equal(staged, image) {
		t.Error("staged image differs from upload")
	}

	if err := f.m.Pump(ctx); !errors.Is(err, mode.ErrRestartRequested) {
		t.Fatalf("Pump() error = %v, want ErrRestartRequested", err)
	}
	installed, err := os.ReadFile(f.cfg.InstallPath)
	if err != nil {
		t.Fatalf("installed image missing: %v", err)
	}
	if !bytes.Equal(installed, image) {
		t.Error("installed image differs from upload")
	}
	if !f.arbiter.UpdateInProgress() {
		t.Error("update flag released before restart")
	}

	if len(f.history.finished) != 1 || f.history.finished[0].Status != store.UpdateApplied {
		t.Errorf("history finished = %+v, want one applied", f.history.finished)
	}
	if f.history.finished[0].FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	// Nothing left to apply.
	if err := f.m.Pump(ctx); err != nil {
		t.Errorf("second Pump() error = %v", err)
	}
}

func TestPump_Idle(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.m.Pump(context.Background()); err != nil {
		t.Errorf("Pump() error = %v", err)
	}
}

func TestReceive_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		sha     string
		wantErr error
	}{
		{"checksum mismatch", []byte("image"), digest([]byte("other")), ErrChecksumMismatch},
		{"too large", bytes.Repeat([]byte{0xAA}, 1025), "", ErrTooLarge},
		{"empty", nil, "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			rec, err := f.m.Receive(context.Background(), bytes.NewReader(tt.body), tt.sha)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Receive() error = %v, want %v", err, tt.wantErr)
			}
			if f.arbiter.UpdateInProgress() {
				t.Error("update flag still held after a rejected upload")
			}
			if rec.Status != store.UpdateFailed || rec.Error == "" {
				t.Errorf("record = %+v, want failed with error text", rec)
			}
			if len(f.history.finished) != 1 || f.history.finished[0].Status != store.UpdateFailed {
				t.Errorf("history finished = %+v, want one failed", f.history.finished)
			}
			if _, err := os.Stat(filepath.Join(f.cfg.StagingDir, StagedName)); !os.IsNotExist(err) {
				t.Error("rejected image was staged")
			}
			if parts := partFiles(t, f.cfg.StagingDir); len(parts) != 0 {
				t.Errorf("leftover partial files: %v", parts)
			}
			if err := f.m.Pump(context.Background()); err != nil {
				t.Errorf("Pump() after rejection error = %v", err)
			}
		})
	}
}

func TestReceive_UpdateInProgress(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.arbiter.BeginUpdate("other"); err != nil {
		t.Fatalf("BeginUpdate() error = %v", err)
	}

	_, err := f.m.Receive(context.Background(), strings.NewReader("image"), "")
	if !errors.Is(err, mode.ErrUpdateInProgress) {
		t.Fatalf("Receive() error = %v, want ErrUpdateInProgress", err)
	}
	if f.arbiter.CurrentUpdate() != "other" {
		t.Errorf("CurrentUpdate() = %q, want the running session kept", f.arbiter.CurrentUpdate())
	}
	if len(f.history.started) != 0 {
		t.Error("history recorded a refused session")
	}
}

func TestPump_InstallFailure(t *testing.T) {
	f := newFixture(t, func(c *config.UpdateConfig) {
		c.InstallPath = filepath.Join(c.StagingDir, "missing-dir", "rfbridge")
	})
	ctx := context.Background()

	if _, err := f.m.Receive(ctx, strings.NewReader("image"), ""); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if err := f.m.Pump(ctx); err != nil {
		t.Fatalf("Pump() error = %v, want nil on install failure", err)
	}
	if f.arbiter.UpdateInProgress() {
		t.Error("update flag held after a failed install")
	}
	if len(f.history.finished) != 1 || f.history.finished[0].Status != store.UpdateFailed {
		t.Errorf("history finished = %+v, want one failed", f.history.finished)
	}
}

func TestPump_NoInstallPath(t *testing.T) {
	f := newFixture(t, func(c *config.UpdateConfig) { c.InstallPath = "" })
	ctx := context.Background()

	if _, err := f.m.Receive(ctx, strings.NewReader("image"), ""); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if err := f.m.Pump(ctx); !errors.Is(err, mode.ErrRestartRequested) {
		t.Fatalf("Pump() error = %v, want ErrRestartRequested", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.StagingDir, StagedName)); err != nil {
		t.Errorf("staged image not left for the supervisor: %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.m.Receive(context.Background(), strings.NewReader(""), ""); err == nil {
		t.Fatal("Receive() of empty image error = nil")
	}

	records, err := f.m.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("History() returned %d records, want 1", len(records))
	}

	m, _ := NewManager(Options{Config: f.cfg, Flag: mode.NewArbiter(mode.ArbiterOptions{})})
	records, err = m.History(context.Background(), 10)
	if err != nil || len(records) != 0 {
		t.Errorf("History() without store = (%v, %v), want empty", records, err)
	}
}
