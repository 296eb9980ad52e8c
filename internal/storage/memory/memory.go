package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"backoffice/internal/core"
)

// SeedFile is the optional JSON array of rules loaded by NewFromFiles.
const SeedFile = "recurring_rules.json"

// Store keeps rules, occurrences and key-value entries in process memory.
type Store struct {
	mu          sync.Mutex
	rules       map[string]core.RecurringRule
	occurrences map[string]core.Occurrence
	byKey       map[string]string // Occurrence.Key -> id
	kv          map[string][]byte
}

func New(rules ...core.RecurringRule) *Store {
	s := &Store{
		rules:       make(map[string]core.RecurringRule),
		occurrences: make(map[string]core.Occurrence),
		byKey:       make(map[string]string),
		kv:          make(map[string][]byte),
	}
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.rules[r.ID] = r
	}
	return s
}

// NewFromFiles seeds the store from base/recurring_rules.json when present.
// Invalid rules in the seed are skipped.
func NewFromFiles(base string) *Store {
	b, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err != nil {
		return New()
	}
	var seed []core.RecurringRule
	if err := json.Unmarshal(b, &seed); err != nil {
		return New()
	}
	valid := seed[:0]
	for _, r := range seed {
		if r.Validate() == nil {
			valid = append(valid, r)
		}
	}
	return New(valid...)
}

func (s *Store) ListRecurringRules(_ context.Context, ownerID string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringRule, 0, len(s.rules))
	for _, r := range s.rules {
		if ownerID == "" || r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b core.RecurringRule) int {
		if c := a.StartDate.Compare(b.StartDate.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetRecurringRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringRule{}, fmt.Errorf("recurring rule %q: %w", id, core.ErrNotFound)
	}
	return r, nil
}

func (s *Store) SaveRecurringRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) ListOccurrences(_ context.Context, sourceID string) ([]core.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Occurrence
	for _, o := range s.occurrences {
		if o.SourceID == sourceID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b core.Occurrence) int {
		return a.OccurrenceDate.Compare(b.OccurrenceDate.Time)
	})
	return out, nil
}

func (s *Store) GetOccurrence(_ context.Context, id string) (core.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[id]
	if !ok {
		return core.Occurrence{}, fmt.Errorf("occurrence %q: %w", id, core.ErrNotFound)
	}
	return o, nil
}

// SaveOccurrence stores o unless an occurrence for the same rule and day exists.
func (s *Store) SaveOccurrence(_ context.Context, o core.Occurrence) (core.Occurrence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[o.Key()]; ok {
		return s.occurrences[id], false, nil
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.occurrences[o.ID] = o
	s.byKey[o.Key()] = o.ID
	return o, true, nil
}

func (s *Store) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[namespace+"\x00"+key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Put(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[namespace+"\x00"+key] = slices.Clone(value)
	return nil
}

// AppendOccurrence records o and returns a synthetic row reference, standing
// in for a spreadsheet during development.
func (s *Store) AppendOccurrence(ctx context.Context, o core.Occurrence) (string, error) {
	saved, _, err := s.SaveOccurrence(ctx, o)
	if err != nil {
		return "", err
	}
	return "mem:" + saved.ID, nil
}
