package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/core"
)

// HeaderUserID carries the caller's identity, set by the fronting proxy.
const HeaderUserID = "X-User-ID"

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON value from the request body into dst.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// userID returns the trimmed identity header, or "" when absent.
func userID(r *http.Request) string {
	return sanitizeInput(r.Header.Get(HeaderUserID))
}

// parseAmountParam reads a float amount from query. A missing value is an error.
func parseAmountParam(query url.Values, key string) (float64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

// parseDateParam reads a YYYY-MM-DD day from query, defaulting to fallback
// when the key is absent.
func parseDateParam(query url.Values, key string, fallback time.Time) (time.Time, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in %s format", key, core.DateLayout)
	}
	return d.Time, nil
}

// asOfOrNow returns the time of d, or now when d is zero.
func asOfOrNow(d core.Date, now time.Time) time.Time {
	if d.IsZero() {
		return now
	}
	return d.Time
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
