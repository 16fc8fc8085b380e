package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/rfbridge/internal/bridge"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfbridge/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Server timeouts. The write timeout covers a full image upload.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
)

// StatusSource reports the bridge status. Satisfied by *bridge.Bridge.
type StatusSource interface {
	Status() bridge.Status
}

// Updater runs update sessions. Satisfied by *update.Manager.
type Updater interface {
	Receive(ctx context.Context, body io.Reader, wantSHA string) (store.UpdateRecord, error)
	History(ctx context.Context, limit int) ([]store.UpdateRecord, error)
}

// HealthChecker is a dependency probed by GET /api/v1/health.
// Satisfied by *database.DB and *influxdb.Client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.UpdateConfig
	Logger  *logging.Logger
	Status  StatusSource
	Updates Updater // optional: update endpoints answer 503 without it
	Version string

	// Health maps a component name to its check. A failing check turns
	// the health status to "degraded".
	Health map[string]HealthChecker
}

// Server is the bridge's HTTP API server.
type Server struct {
	cfg     config.UpdateConfig
	logger  *logging.Logger
	status  StatusSource
	updates Updater
	version string
	health  map[string]HealthChecker
	started time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, status source)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		status:  deps.Status,
		updates: deps.Updates,
		version: deps.Version,
		health:  deps.Health,
		started: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
