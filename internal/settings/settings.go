// Package settings stores per-identity display preferences in the local
// key-value store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"backoffice/internal/cache"
	"backoffice/internal/core"
	"backoffice/internal/ports"
)

const (
	settingsKey      = "settings"
	defaultCacheSize = 1000
	DefaultCacheTTL  = 5 * time.Minute
)

var ErrNoIdentity = errors.New("missing user identity")

// Service reads and writes settings for one identity at a time. Stored
// settings are merged over core.DefaultSettings, so a user who never saved
// anything sees the defaults.
type Service struct {
	kv    ports.KVStore
	cache cache.Cache[core.Settings]
}

func NewService(kv ports.KVStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		kv:    kv,
		cache: cache.NewLRU[core.Settings](defaultCacheSize, ttl),
	}
}

func namespace(userID string) string {
	return "user:" + userID
}

func (s *Service) Get(ctx context.Context, userID string) (core.Settings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.Settings{}, ErrNoIdentity
	}
	if cached, ok := s.cache.Get(userID); ok {
		return cached, nil
	}

	raw, err := s.kv.Get(ctx, namespace(userID), settingsKey)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultSettings(), nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	var stored core.Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable settings",
			"user_id", userID,
			"error", err)
		return core.DefaultSettings(), nil
	}

	out := stored.Merge(core.DefaultSettings())
	s.cache.Set(userID, out)
	return out, nil
}

// Update applies the non-empty fields of patch to the user's settings.
func (s *Service) Update(ctx context.Context, userID string, patch core.Settings) (core.Settings, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return core.Settings{}, err
	}
	userID = strings.TrimSpace(userID)

	next := patch.Merge(current)
	code, err := core.NormalizeCurrencyCode(next.Currency)
	if err != nil {
		return core.Settings{}, fmt.Errorf("%w: %v", core.ErrInvalidSetting, err)
	}
	next.Currency = code
	if err := next.Validate(); err != nil {
		return core.Settings{}, err
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return core.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Put(ctx, namespace(userID), settingsKey, raw); err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.cache.Set(userID, next)

	slog.InfoContext(ctx, "Settings updated",
		"user_id", userID,
		"currency", next.Currency,
		"theme", next.Theme)
	return next, nil
}
