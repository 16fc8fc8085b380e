package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/mode"
	"github.com/nerrad567/rfbridge/internal/store"
)

const (
	// StagedName is the file name of a verified image in the staging dir.
	StagedName = "rfbridge.staged"

	stagingDirPermissions = 0750
	imagePermissions      = 0750
)

// Flag is the update-in-progress flag, held by mode.Arbiter.
type Flag interface {
	BeginUpdate(id string) error
	EndUpdate(err error)
}

// History records update sessions.
type History interface {
	StartUpdate(ctx context.Context, id string, startedAt time.Time) error
	FinishUpdate(ctx context.Context, rec store.UpdateRecord) error
	ListUpdates(ctx context.Context, limit int) ([]store.UpdateRecord, error)
}

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Manager.
type Options struct {
	Config  config.UpdateConfig
	Flag    Flag
	History History
	Logger  Logger
}

type staged struct {
	rec  store.UpdateRecord
	path string
}

// Manager runs update sessions. Receive runs on an HTTP goroutine and only
// stages the image; Pump runs on the tick goroutine and applies it.
//
// The update flag is taken when an upload starts. A failed upload releases
// it at once. A staged image keeps it held until Pump installs the image
// and asks for a restart, so normal operation never resumes on a device
// that is about to be replaced.
type Manager struct {
	cfg     config.UpdateConfig
	flag    Flag
	history History
	logger  Logger

	ready chan staged
	now   func() time.Time
}

// NewManager creates a Manager. Flag is required; History is optional.
func NewManager(opts Options) (*Manager, error) {
	if opts.Flag == nil {
		return nil, errors.New("update: flag is required")
	}
	if opts.Config.StagingDir == "" {
		return nil, errors.New("update: staging dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		cfg:     opts.Config,
		flag:    opts.Flag,
		history: opts.History,
		logger:  logger,
		ready:   make(chan staged, 1),
		now:     time.Now,
	}, nil
}

// Receive stages one image read from body. wantSHA, when not empty, is
// the hex SHA-256 the image must match.
//
// Parameters:
//   - ctx: Request context, used for history writes
//   - body: Image bytes
//   - wantSHA: Expected hex digest, or ""
//
// Returns:
//   - store.UpdateRecord: The session, still running on success
//   - error: mode.ErrUpdateInProgress, ErrTooLarge, ErrEmpty,
//     ErrChecksumMismatch, or an I/O error
func (m *Manager) Receive(ctx context.Context, body io.Reader, wantSHA string) (store.UpdateRecord, error) {
	id := "upd-" + uuid.NewString()[:8]
	if err := m.flag.BeginUpdate(id); err != nil {
		return store.UpdateRecord{}, err
	}

	rec := store.UpdateRecord{ID: id, StartedAt: m.now().UTC(), Status: store.UpdateRunning}
	if m.history != nil {
		if err := m.history.StartUpdate(ctx, id, rec.StartedAt); err != nil {
			m.logger.Warn("failed to record update start", "update_id", id, "error", err)
		}
	}

	path, size, sum, err := m.stage(body, wantSHA)
	rec.SizeBytes = size
	rec.SHA256 = sum
	if err != nil {
		m.finish(ctx, &rec, err)
		m.flag.EndUpdate(err)
		return rec, err
	}

	m.logger.Info("update image staged", "update_id", id, "size_bytes", size, "sha256", sum)
	m.ready <- staged{rec: rec, path: path}
	return rec, nil
}

// Pump applies a staged image, if there is one. It never blocks.
// After a successful install it returns mode.ErrRestartRequested and leaves
// the update flag set.
func (m *Manager) Pump(ctx context.Context) error {
	var s staged
	select {
	case s = <-m.ready:
	default:
		return nil
	}

	if err := m.install(s.path); err != nil {
		m.logger.Error("update install failed", "update_id", s.rec.ID, "error", err)
		m.finish(ctx, &s.rec, err)
		m.flag.EndUpdate(err)
		return nil
	}

	m.finish(ctx, &s.rec, nil)
	m.logger.Info("update applied, restarting", "update_id", s.rec.ID)
	return mode.ErrRestartRequested
}

// History returns recent update sessions, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]store.UpdateRecord, error) {
	if m.history == nil {
		return []store.UpdateRecord{}, nil
	}
	return m.history.ListUpdates(ctx, limit)
}

// stage streams body into a temporary file, hashing as it goes, and renames
// it to StagedName once the size and digest check out.
func (m *Manager) stage(body io.Reader, wantSHA string) (path string, size int64, sum string, err error) {
	if err := os.MkdirAll(m.cfg.StagingDir, stagingDirPermissions); err != nil {
		return "", 0, "", fmt.Errorf("creating staging dir: %w", err)
	}

	f, err := os.CreateTemp(m.cfg.StagingDir, "rfbridge-*.part")
	if err != nil {
		return "", 0, "", fmt.Errorf("creating staging file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp) //nolint:errcheck // best effort cleanup
		}
	}()

	h := sha256.New()
	limit := m.cfg.MaxSize
	src := body
	if limit > 0 {
		src = io.LimitReader(body, limit+1)
	}

	size, err = io.Copy(io.MultiWriter(f, h), src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", size, "", fmt.Errorf("receiving image: %w", err)
	}
	sum = hex.EncodeToString(h.Sum(nil))

	switch {
	case limit > 0 && size > limit:
		return "", size, sum, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	case size == 0:
		return "", 0, sum, ErrEmpty
	case wantSHA != "" && !strings.EqualFold(strings.TrimSpace(wantSHA), sum):
		return "", size, sum, fmt.Errorf("%w: got %s", ErrChecksumMismatch, sum)
	}

	if err = os.Chmod(tmp, imagePermissions); err != nil {
		return "", size, sum, fmt.Errorf("setting image mode: %w", err)
	}
	path = filepath.Join(m.cfg.StagingDir, StagedName)
	if err = os.Rename(tmp, path); err != nil {
		return "", size, sum, fmt.Errorf("staging image: %w", err)
	}
	return path, size, sum, nil
}

func (m *Manager) install(path string) error {
	if m.cfg.InstallPath == "" {
		return nil
	}
	if err := os.Rename(path, m.cfg.InstallPath); err != nil {
		return fmt.Errorf("installing %s: %w", m.cfg.InstallPath, err)
	}
	return nil
}

func (m *Manager) finish(ctx context.Context, rec *store.UpdateRecord, err error) {
	t := m.now().UTC()
	rec.FinishedAt = &t
	rec.Status = store.UpdateApplied
	if err != nil {
		rec.Status = store.UpdateFailed
		rec.Error = err.Error()
	}
	if m.history == nil {
		return
	}
	if herr := m.history.FinishUpdate(ctx, *rec); herr != nil {
		m.logger.Warn("failed to record update outcome", "update_id", rec.ID, "error", herr)
	}
}
