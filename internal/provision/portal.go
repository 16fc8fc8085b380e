// Package provision serves the provisioning portal: a small HTTP endpoint
// that accepts a replacement configuration file after a double reset.
//
// The portal replaces the configuration atomically and then returns, so the
// caller can restart the process with the new settings.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// DefaultTimeout bounds how long the portal waits for a configuration.
const DefaultTimeout = 5 * time.Minute

// maxConfigSize caps the uploaded YAML document.
const maxConfigSize = 1 << 20

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

// Options configures a Portal.
type Options struct {
	Host string
	Port int

	// ConfigPath is the file replaced by an accepted upload.
	ConfigPath string

	// Timeout of zero uses DefaultTimeout.
	Timeout time.Duration

	Logger Logger
}

// Portal accepts one configuration upload. It implements mode.Provisioner.
type Portal struct {
	addr       string
	configPath string
	timeout    time.Duration
	logger     Logger

	mu       sync.Mutex
	done     chan struct{}
	accepted bool

	// bound is closed once the listener is up; addrBound holds its address.
	bound     chan struct{}
	addrBound string
}

// New creates a Portal.
func New(opts Options) (*Portal, error) {
	if opts.ConfigPath == "" {
		return nil, errors.New("config path is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Portal{
		addr:       net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		configPath: opts.ConfigPath,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		done:       make(chan struct{}),
		bound:      make(chan struct{}),
	}, nil
}

// Provision serves the portal until a valid configuration is written, the
// timeout expires, or ctx is cancelled.
//
// Returns:
//   - nil: configuration replaced
//   - ErrTimeout: nothing arrived in time
//   - ctx.Err(): cancelled
func (p *Portal) Provision(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("binding provisioning listener on %s: %w", p.addr, err)
	}
	p.addrBound = ln.Addr().String()
	close(p.bound)

	srv := &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	p.logger.Info("provisioning portal listening", "address", p.addrBound, "timeout", p.timeout)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var result error
	select {
	case <-p.done:
	case <-timer.C:
		result = ErrTimeout
	case <-ctx.Done():
		result = ctx.Err()
	case err := <-serveErr:
		result = fmt.Errorf("provisioning portal: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Warn("provisioning portal shutdown", "error", err)
	}
	return result
}

// Addr blocks until the listener is bound and returns its address.
func (p *Portal) Addr() string {
	<-p.bound
	return p.addrBound
}

// Handler returns the portal's router.
func (p *Portal) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", p.handleHealth)
		r.Put("/provision", p.handleProvision)
	})
	return r
}

func (p *Portal) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "provisioning"})
}

func (p *Portal) handleProvision(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "configuration too large")
		return
	}

	cfg, err := config.Parse(data)
	if err != nil {
		p.logger.Warn("rejected provisioning upload", "error", err)
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: %w", ErrInvalidConfig, err).Error())
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accepted {
		writeError(w, http.StatusConflict, "configuration already accepted")
		return
	}
	if err := writeAtomic(p.configPath, data); err != nil {
		p.logger.Error("writing provisioned config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store configuration")
		return
	}
	p.accepted = true
	close(p.done)

	p.logger.Info("configuration provisioned", "device_id", cfg.Device.ID, "path", p.configPath)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "device_id": cfg.Device.ID})
}

// writeAtomic replaces path with data via a temp file and rename, mode 0600.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // sync error takes precedence
		return fmt.Errorf("syncing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Chmod(name, 0o600); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "message": message})
}
