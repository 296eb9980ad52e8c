// Package backend wires the persistence mode selected at startup into the
// stores and services the binaries share.
package backend

import (
	"context"

	"backoffice/internal/amqp"
	"backoffice/internal/ports"
	"backoffice/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend is the set of ports one persistence mode provides, plus the
// services composed on top of them.
type Backend struct {
	Type        BackendType
	Rules       ports.RuleStore
	Occurrences ports.OccurrenceStore
	// KV holds rate snapshots and user settings. It is always local, even
	// when rules and occurrences live behind the remote API.
	KV ports.KVStore
	// Events is nil when AMQP is not configured or unreachable.
	Events *amqp.Client

	Recorder  *services.OccurrenceService
	Processor *services.RecurringProcessor

	ping func(ctx context.Context) error
}

// Ping checks the underlying store is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	APIBackend    BackendType = "api"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, APIBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, APIBackend}
}
