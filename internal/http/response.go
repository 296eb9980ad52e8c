package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"backoffice/internal/core"
	applog "backoffice/internal/log"
	"backoffice/internal/middleware/trace"
	"backoffice/internal/rates"
	"backoffice/internal/settings"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: w.Header().Get(trace.HeaderRequestID),
	})
}

// writeErr maps err to a status code and writes it. Server-side failures are
// logged and their detail is not echoed to the client.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err).ToSlice()...)
		writeError(w, r, status, http.StatusText(status))
		return
	}
	writeError(w, r, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrUnsupportedCadence),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidSetting),
		errors.Is(err, errEmptyBody):
		return http.StatusBadRequest
	case errors.Is(err, rates.ErrRefreshFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
