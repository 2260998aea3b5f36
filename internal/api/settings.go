package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// settingsResponse is the response body for GET and PUT /settings.
type settingsResponse struct {
	StaleTime        string  `json:"stale_time"`
	StaleTimeSeconds float64 `json:"stale_time_seconds"`
}

// settingsRequest is the request body for PUT /settings.
type settingsRequest struct {
	StaleTime string `json:"stale_time" validate:"required"`
}

func (s *Server) currentSettings() settingsResponse {
	d := s.registry.StaleTime()
	return settingsResponse{
		StaleTime:        d.String(),
		StaleTimeSeconds: d.Seconds(),
	}
}

// handleGetSettings returns the runtime settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentSettings())
}

// handleUpdateSettings changes the stale time. Countdowns already running
// keep the duration they were armed with.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := time.ParseDuration(req.StaleTime)
	if err != nil || d <= 0 {
		writeBadRequest(w, "stale_time must be a positive duration such as \"8h\"")
		return
	}

	s.registry.SetStaleTime(d)
	s.logger.Info("stale time changed via API",
		"stale_time", d,
		"subject", subjectFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, s.currentSettings())
}
