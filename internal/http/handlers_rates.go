package http

import (
	"net/http"
	"strings"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/rates"
)

type ratesResponse struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
	Stale     bool               `json:"stale"`
}

type refreshFailedResponse struct {
	Error string         `json:"error"`
	Rates *ratesResponse `json:"rates,omitempty"`
}

type conversionResponse struct {
	rates.Conversion
	Formatted string `json:"formatted"`
}

func (s *Server) ratesView(t *core.ExchangeRateTable) *ratesResponse {
	if t == nil {
		return nil
	}
	return &ratesResponse{
		Base:      t.Base,
		Rates:     t.Rates,
		FetchedAt: t.FetchedAt,
		Stale:     s.deps.Rates.IsStale(s.now()),
	}
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeError(w, r, http.StatusServiceUnavailable, "exchange rates not configured")
		return
	}
	t := s.deps.Rates.LoadRates(r.Context())
	if t == nil {
		writeError(w, r, http.StatusServiceUnavailable, "exchange rates unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.ratesView(t))
}

// handleRefreshRates forces a provider fetch. On failure the response still
// carries the table that remains in use.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeError(w, r, http.StatusServiceUnavailable, "exchange rates not configured")
		return
	}
	t, err := s.deps.Rates.RefreshRates(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, refreshFailedResponse{
			Error: err.Error(),
			Rates: s.ratesView(s.deps.Rates.Current()),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.ratesView(t))
}

// handleConvert converts amount between two currencies. When "to" is absent
// the caller's preferred currency is used, then the base currency.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := parseAmountParam(q, "amount")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	from := strings.TrimSpace(q.Get("from"))
	if from == "" {
		writeError(w, r, http.StatusBadRequest, "from is required")
		return
	}
	to := strings.TrimSpace(q.Get("to"))
	if to == "" {
		to = s.preferredCurrency(r)
	}

	var table *core.ExchangeRateTable
	if s.deps.Rates != nil {
		table = s.deps.Rates.LoadRates(r.Context())
	}
	c := rates.ConvertDetailed(amount, from, to, table)
	writeJSON(w, http.StatusOK, conversionResponse{
		Conversion: c,
		Formatted:  rates.Format(c.Amount, c.To),
	})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := parseAmountParam(q, "amount")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.TrimSpace(q.Get("currency"))
	if code == "" {
		code = s.preferredCurrency(r)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"currency":  strings.ToUpper(code),
		"formatted": rates.Format(amount, code),
	})
}

func (s *Server) preferredCurrency(r *http.Request) string {
	if s.deps.Settings != nil {
		if id := userID(r); id != "" {
			if st, err := s.deps.Settings.Get(r.Context(), id); err == nil {
				return st.Currency
			}
		}
	}
	return core.BaseCurrency
}
