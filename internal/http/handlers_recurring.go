package http

import (
	"errors"
	"net/http"
	"strings"

	"backoffice/internal/core"
	"backoffice/internal/recurrence"
)

type previewRequest struct {
	RuleID string              `json:"rule_id,omitempty"`
	Rule   *core.RecurringRule `json:"rule,omitempty"`
	AsOf   core.Date           `json:"as_of"`
}

type previewResponse struct {
	Occurrences []core.Occurrence `json:"occurrences"`
	Truncated   bool              `json:"truncated"`
	Next        *core.Date        `json:"next,omitempty"`
}

type generateRequest struct {
	OwnerID string    `json:"owner_id,omitempty"`
	AsOf    core.Date `json:"as_of"`
}

type nextResponse struct {
	RuleID string     `json:"rule_id"`
	After  core.Date  `json:"after"`
	Next   *core.Date `json:"next,omitempty"`
	Ended  bool       `json:"ended"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if !s.requireRules(w, r) {
		return
	}
	owner := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if owner == "" {
		owner = userID(r)
	}
	rules, err := s.deps.Rules.ListRecurringRules(r.Context(), owner)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if !s.requireRules(w, r) {
		return
	}
	rule, err := s.deps.Rules.GetRecurringRule(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleSaveRule(w http.ResponseWriter, r *http.Request) {
	if !s.requireRules(w, r) {
		return
	}
	var rule core.RecurringRule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rule.Description = sanitizeInput(rule.Description)
	if rule.OwnerID == "" {
		rule.OwnerID = userID(r)
	}
	if rule.Currency != "" {
		code, err := core.NormalizeCurrencyCode(rule.Currency)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		rule.Currency = code
	}
	if err := rule.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if rule.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.deps.Rules.SaveRecurringRule(r.Context(), rule)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

// handlePreview reports what catch-up would generate for a rule without
// recording anything. The rule is given inline or by id.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var rule core.RecurringRule
	switch {
	case req.Rule != nil:
		rule = *req.Rule
	case req.RuleID != "":
		if !s.requireRules(w, r) {
			return
		}
		var err error
		if rule, err = s.deps.Rules.GetRecurringRule(r.Context(), req.RuleID); err != nil {
			writeErr(w, r, err)
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, "rule or rule_id is required")
		return
	}

	p, err := recurrence.Schedule(rule, asOfOrNow(req.AsOf, s.now()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp := previewResponse{
		Occurrences: p.Occurrences,
		Truncated:   p.Truncated,
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []core.Occurrence{}
	}
	if !p.Next.IsZero() {
		resp.Next = &p.Next
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGenerate runs catch-up for one owner and records the occurrences.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processor == nil {
		writeError(w, r, http.StatusServiceUnavailable, "recurring processor not configured")
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	owner := req.OwnerID
	if owner == "" {
		owner = userID(r)
	}
	if owner == "" {
		owner = s.deps.DefaultOwnerID
	}

	summary, err := s.deps.Processor.ProcessDueRules(r.Context(), owner, asOfOrNow(req.AsOf, s.now()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	if !s.requireRules(w, r) {
		return
	}
	after, err := parseDateParam(r.URL.Query(), "after", s.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := s.deps.Rules.GetRecurringRule(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	resp := nextResponse{RuleID: rule.ID, After: core.DateOf(after)}
	next, err := recurrence.NextUpcomingOccurrence(rule, after)
	switch {
	case errors.Is(err, recurrence.ErrRuleEnded):
		resp.Ended = true
	case err != nil:
		writeErr(w, r, err)
		return
	default:
		resp.Next = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireRules(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Rules == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rule storage not configured")
		return false
	}
	return true
}
