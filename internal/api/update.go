package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/rfbridge/internal/mode"
	"github.com/nerrad567/rfbridge/internal/update"
)

// headerContentSHA256 optionally carries the hex SHA-256 of the image.
const headerContentSHA256 = "X-Content-SHA256"

// handleUpdate stages an uploaded image. The response is 202: the tick
// loop applies the image and restarts the process shortly after.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "updates are disabled")
		return
	}

	rec, err := s.updates.Receive(r.Context(), r.Body, r.Header.Get(headerContentSHA256))
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, rec)
	case errors.Is(err, mode.ErrUpdateInProgress):
		writeError(w, http.StatusConflict, ErrCodeConflict, "another update is in progress")
	case errors.Is(err, update.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
	case errors.Is(err, update.ErrEmpty), errors.Is(err, update.ErrChecksumMismatch):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("update upload failed", "error", err)
		writeInternalError(w, "update failed")
	}
}

func (s *Server) handleUpdateHistory(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "updates are disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.updates.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing update history failed", "error", err)
		writeInternalError(w, "failed to list update history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": records})
}
