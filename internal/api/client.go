// Package api is a client for the remote back-office REST API, which owns
// recurring rules and expenses when the service runs in api mode.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backoffice/internal/core"
)

const defaultTimeout = 30 * time.Second

// Error is a non-2xx response from the backend.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend api: status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// expensePayload is the backend's expense record. Generated occurrences are
// posted as expenses that carry a reference to their rule.
type expensePayload struct {
	ID          string    `json:"id,omitempty"`
	Date        core.Date `json:"date"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	Category    string    `json:"category,omitempty"`
	Notes       string    `json:"notes"`
	OwnerID     string    `json:"owner_id,omitempty"`
	RecurringID string    `json:"recurring_source_id"`
}

// ListRecurringRules implements ports.RuleSource
func (c *Client) ListRecurringRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	path := "/recurring-rules"
	if ownerID != "" {
		path += "?owner_id=" + url.QueryEscape(ownerID)
	}
	var rules []core.RecurringRule
	if err := c.do(ctx, http.MethodGet, path, nil, &rules); err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return rules, nil
}

// GetRecurringRule implements ports.RuleSource
func (c *Client) GetRecurringRule(ctx context.Context, id string) (core.RecurringRule, error) {
	var rule core.RecurringRule
	if err := c.do(ctx, http.MethodGet, "/recurring-rules/"+url.PathEscape(id), nil, &rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %q: %w", id, err)
	}
	return rule, nil
}

// SaveRecurringRule implements ports.RuleWriter
func (c *Client) SaveRecurringRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	method, path := http.MethodPost, "/recurring-rules"
	if r.ID != "" {
		method, path = http.MethodPut, "/recurring-rules/"+url.PathEscape(r.ID)
	}
	var saved core.RecurringRule
	if err := c.do(ctx, method, path, r, &saved); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}
	return saved, nil
}

// ListOccurrences implements ports.OccurrenceStore
func (c *Client) ListOccurrences(ctx context.Context, sourceID string) ([]core.Occurrence, error) {
	var expenses []expensePayload
	if err := c.do(ctx, http.MethodGet, "/recurring-rules/"+url.PathEscape(sourceID)+"/occurrences", nil, &expenses); err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	out := make([]core.Occurrence, 0, len(expenses))
	for _, e := range expenses {
		o, err := e.occurrence()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOccurrence implements ports.OccurrenceStore
func (c *Client) GetOccurrence(ctx context.Context, id string) (core.Occurrence, error) {
	var e expensePayload
	if err := c.do(ctx, http.MethodGet, "/expenses/"+url.PathEscape(id), nil, &e); err != nil {
		return core.Occurrence{}, fmt.Errorf("get expense %q: %w", id, err)
	}
	return e.occurrence()
}

// SaveOccurrence implements ports.OccurrenceStore by posting the occurrence
// as a new expense. A 409 from the backend means it was already recorded.
func (c *Client) SaveOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, bool, error) {
	var created expensePayload
	err := c.do(ctx, http.MethodPost, "/expenses", newExpensePayload(o), &created)

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return o, false, nil
	}
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("create expense: %w", err)
	}
	if created.ID != "" {
		o.ID = created.ID
	}
	return o, true, nil
}

// GenerateRecurring implements ports.RemoteGenerator
func (c *Client) GenerateRecurring(ctx context.Context, ownerID string) (int, error) {
	var out struct {
		Created int `json:"created"`
	}
	body := map[string]string{"owner_id": ownerID}
	if err := c.do(ctx, http.MethodPost, "/recurring/generate", body, &out); err != nil {
		return 0, fmt.Errorf("generate recurring entries: %w", err)
	}
	return out.Created, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend API call",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusNotFound {
		return core.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newExpensePayload(o core.Occurrence) expensePayload {
	return expensePayload{
		Date:        o.OccurrenceDate,
		Description: o.Description,
		Amount:      o.Amount.StringFixed(2),
		Currency:    o.Currency,
		Category:    o.Category,
		Notes:       o.Note,
		OwnerID:     o.OwnerID,
		RecurringID: o.SourceID,
	}
}

func (e expensePayload) occurrence() (core.Occurrence, error) {
	amount, err := core.ParseAmount(e.Amount)
	if err != nil {
		return core.Occurrence{}, fmt.Errorf("expense %s amount %q: %w", e.ID, e.Amount, err)
	}
	return core.Occurrence{
		ID:             e.ID,
		SourceID:       e.RecurringID,
		OwnerID:        e.OwnerID,
		OccurrenceDate: e.Date,
		Description:    e.Description,
		Amount:         amount,
		Currency:       e.Currency,
		Category:       e.Category,
		Note:           e.Notes,
	}, nil
}
