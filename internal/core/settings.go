package core

import (
	"errors"
	"fmt"
	"slices"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// SupportedDateFormats are the display layouts a user can pick.
var SupportedDateFormats = []string{"MM/dd/yyyy", "dd/MM/yyyy", "yyyy-MM-dd"}

var ErrInvalidSetting = errors.New("invalid setting")

// Settings are the user-facing display preferences of one identity.
type Settings struct {
	Currency   string `json:"currency"`
	DateFormat string `json:"date_format"`
	Theme      string `json:"theme"`
}

func DefaultSettings() Settings {
	return Settings{
		Currency:   BaseCurrency,
		DateFormat: SupportedDateFormats[0],
		Theme:      ThemeSystem,
	}
}

func (s Settings) Validate() error {
	if _, err := NormalizeCurrencyCode(s.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	if !slices.Contains(SupportedDateFormats, s.DateFormat) {
		return fmt.Errorf("%w: unsupported date format %q", ErrInvalidSetting, s.DateFormat)
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("%w: unsupported theme %q", ErrInvalidSetting, s.Theme)
	}
	return nil
}

// Merge returns s with every empty field taken from fallback.
func (s Settings) Merge(fallback Settings) Settings {
	if s.Currency == "" {
		s.Currency = fallback.Currency
	}
	if s.DateFormat == "" {
		s.DateFormat = fallback.DateFormat
	}
	if s.Theme == "" {
		s.Theme = fallback.Theme
	}
	return s
}
