package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-shelly/internal/journal"
)

// handleListEvents queries the device event journal.
//
// Query parameters: event, type, id, limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeUnavailable(w, "event journal not configured")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Event:      q.Get("event"),
		DeviceType: q.Get("type"),
		DeviceID:   q.Get("id"),
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing device events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query parameter,
// writing a 400 response when it is malformed.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
