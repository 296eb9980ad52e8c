package http

import (
	"net/http"

	"backoffice/internal/core"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireSettings(w, r) {
		return
	}
	st, err := s.deps.Settings.Get(r.Context(), userID(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUpdateSettings applies the non-empty fields of the body.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireSettings(w, r) {
		return
	}
	var patch core.Settings
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.deps.Settings.Update(r.Context(), userID(r), patch)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) requireSettings(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Settings == nil {
		writeError(w, r, http.StatusServiceUnavailable, "settings not configured")
		return false
	}
	return true
}
