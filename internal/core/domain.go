package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Weekly    Cadence = "weekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Annually  Cadence = "annually"
)

// DateLayout is the wire and storage layout of a calendar day.
const DateLayout = "2006-01-02"

type (
	Cadence string

	// Date is a calendar day, stored as midnight UTC.
	Date struct {
		time.Time
	}

	RecurringRule struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"owner_id"` // Identity namespace the rule belongs to
		StartDate   Date            `json:"start_date"`
		EndDate     Date            `json:"end_date"` // Optional, zero means open-ended
		Cadence     Cadence         `json:"cadence"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency,omitempty"`
		Category    string          `json:"category,omitempty"`
		Note        string          `json:"note,omitempty"`
		Active      bool            `json:"active"`
	}

	// Occurrence is one dated expense generated from a RecurringRule.
	Occurrence struct {
		ID             string          `json:"id,omitempty"`
		SourceID       string          `json:"source_id"` // ID of the generating rule, a lookup key only
		OwnerID        string          `json:"owner_id,omitempty"`
		OccurrenceDate Date            `json:"occurrence_date"`
		Description    string          `json:"description"`
		Amount         decimal.Decimal `json:"amount"`
		Currency       string          `json:"currency,omitempty"`
		Category       string          `json:"category,omitempty"`
		Note           string          `json:"note"`
	}
)

var (
	ErrUnsupportedCadence = errors.New("unsupported cadence")
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrEmptyDescription   = errors.New("empty description")
	ErrNotFound           = errors.New("not found")
)

// ParseCadence normalizes s and checks it is one of the recognized cadences.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Cadence) Validate() error {
	switch c {
	case Weekly, Monthly, Quarterly, Annually:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCadence, string(c))
	}
}

func (c Cadence) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before and After compare calendar days.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}

func (r RecurringRule) Validate() error {
	if err := r.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	if !r.EndDate.IsZero() {
		if err := r.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if r.EndDate.Before(r.StartDate) {
			return errors.New("end date must not be before start date")
		}
	}

	if err := r.Cadence.Validate(); err != nil {
		return err
	}

	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}

	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	if r.Currency != "" {
		if _, err := NormalizeCurrencyCode(r.Currency); err != nil {
			return err
		}
	}

	return nil
}

// Ends reports whether the rule has an end date.
func (r RecurringRule) Ends() bool {
	return !r.EndDate.IsZero()
}

// ProvenanceNote is the note carried by an occurrence generated from r.
func (r RecurringRule) ProvenanceNote() string {
	note := "Recurring from " + r.StartDate.String()
	if n := strings.TrimSpace(r.Note); n != "" {
		return n + " (" + note + ")"
	}
	return note
}

// Key identifies an occurrence by rule and day; persistence is unique on it.
func (o Occurrence) Key() string {
	return o.SourceID + "@" + o.OccurrenceDate.String()
}
