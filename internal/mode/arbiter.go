package mode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultResetWindow is how long a boot marker counts towards a double reset.
const DefaultResetWindow = 10 * time.Second

// MarkerStore persists the boot marker across restarts.
type MarkerStore interface {
	ReadMarker(ctx context.Context) (time.Time, bool, error)
	WriteMarker(ctx context.Context, t time.Time) error
	ClearMarker(ctx context.Context) error
}

// Provisioner runs the provisioning flow once and returns when it is done.
type Provisioner interface {
	Provision(ctx context.Context) error
}

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// ArbiterOptions configures an Arbiter.
type ArbiterOptions struct {
	Store MarkerStore

	// Window is the double-reset window. Zero uses DefaultResetWindow.
	Window time.Duration

	Logger Logger
}

// Arbiter decides which mode the bridge runs in. It owns the update flag,
// which is set for the whole of an update session and excludes normal
// operation, and detects the double reset that requests provisioning.
type Arbiter struct {
	store  MarkerStore
	window time.Duration
	logger Logger

	updating atomic.Bool

	mu       sync.Mutex
	updateID string

	// markerAt is the marker this boot wrote, pending confirmation.
	markerAt      time.Time
	markerPending bool
}

// NewArbiter creates an arbiter.
func NewArbiter(opts ArbiterOptions) *Arbiter {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultResetWindow
	}
	return &Arbiter{store: opts.Store, window: window, logger: logger}
}

// =============================================================================
// Double reset
// =============================================================================

// DetectDoubleReset is called once at boot. A marker younger than the window
// means the previous boot was reset within the window: the marker is cleared
// and true is returned. Otherwise a fresh marker is written for this boot.
//
// Parameters:
//   - ctx: Context for the store calls
//   - now: Boot time
//
// Returns:
//   - bool: true when provisioning was requested
//   - error: Store failure; callers treat it as a normal boot
func (a *Arbiter) DetectDoubleReset(ctx context.Context, now time.Time) (bool, error) {
	if a.store == nil {
		return false, nil
	}

	at, ok, err := a.store.ReadMarker(ctx)
	if err != nil {
		return false, fmt.Errorf("reading boot marker: %w", err)
	}

	if ok {
		age := now.Sub(at)
		if age >= 0 && age < a.window {
			if err := a.store.ClearMarker(ctx); err != nil {
				return false, fmt.Errorf("clearing boot marker: %w", err)
			}
			a.logger.Info("double reset detected", "marker_age", age)
			return true, nil
		}
	}

	if err := a.store.WriteMarker(ctx, now); err != nil {
		return false, fmt.Errorf("writing boot marker: %w", err)
	}

	a.mu.Lock()
	a.markerAt = now
	a.markerPending = true
	a.mu.Unlock()
	return false, nil
}

// Tick clears this boot's marker once the window has elapsed, confirming
// the boot was not half of a double reset.
func (a *Arbiter) Tick(ctx context.Context, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.markerPending || now.Sub(a.markerAt) < a.window {
		return nil
	}
	if err := a.store.ClearMarker(ctx); err != nil {
		return fmt.Errorf("clearing boot marker: %w", err)
	}
	a.markerPending = false
	return nil
}

// Release clears this boot's marker ahead of a deliberate exit, so a
// restart inside the window is not mistaken for a double reset.
// It is a no-op once the marker has been confirmed.
func (a *Arbiter) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.markerPending {
		return nil
	}
	if err := a.store.ClearMarker(ctx); err != nil {
		return fmt.Errorf("clearing boot marker: %w", err)
	}
	a.markerPending = false
	a.logger.Info("boot marker released for restart")
	return nil
}

// MarkerPending reports whether this boot's marker is still unconfirmed.
func (a *Arbiter) MarkerPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.markerPending
}

// RunProvisioning runs p once. Success returns ErrRestartRequested so the
// process exits and restarts with the new configuration.
func (a *Arbiter) RunProvisioning(ctx context.Context, p Provisioner) error {
	a.logger.Info("entering provisioning mode")
	if err := p.Provision(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("provisioning: %w", err)
	}
	a.logger.Info("provisioning complete, restarting")
	return ErrRestartRequested
}

// =============================================================================
// Update flag
// =============================================================================

// BeginUpdate sets the update flag for session id.
// Safe to call from any goroutine.
func (a *Arbiter) BeginUpdate(id string) error {
	if !a.updating.CompareAndSwap(false, true) {
		return ErrUpdateInProgress
	}

	a.mu.Lock()
	a.updateID = id
	a.mu.Unlock()

	a.logger.Info("update started, normal operation suspended", "update_id", id)
	return nil
}

// EndUpdate clears the update flag whatever the outcome.
func (a *Arbiter) EndUpdate(err error) {
	a.mu.Lock()
	id := a.updateID
	a.updateID = ""
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("update failed, resuming normal operation", "update_id", id, "error", err)
	} else {
		a.logger.Info("update finished", "update_id", id)
	}
	a.updating.Store(false)
}

// UpdateInProgress reports whether an update session holds the flag.
func (a *Arbiter) UpdateInProgress() bool {
	return a.updating.Load()
}

// CurrentUpdate returns the id of the running update session, if any.
func (a *Arbiter) CurrentUpdate() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updateID
}
