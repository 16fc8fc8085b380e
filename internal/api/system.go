package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/rfbridge/internal/bridge"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /api/v1/health.
// Status is "ok", or "degraded" when any component check fails.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     int64             `json:"uptime_seconds"`
	Components map[string]string `json:"components,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	bridge.Status
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  int64(time.Since(s.started).Seconds()),
	}

	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
		for name, check := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.HealthCheck(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("health check failed", "component", name, "error", err)
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  s.status.Status(),
		Version: s.version,
	})
}
