// Package memory provides in-memory store implementations for tests
// and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Ensure PatternStore implements the interface.
var _ driven.PatternStore = (*PatternStore)(nil)

// PatternStore is an in-memory implementation of driven.PatternStore.
// Optimistic concurrency is honored the same way the SQLite store does
// it, so conflict-handling code paths are testable without a database.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[string]domain.Pattern
}

// NewPatternStore creates a new in-memory pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{patterns: make(map[string]domain.Pattern)}
}

// FindByHash returns patterns with the given signature hash within a
// document type.
func (s *PatternStore) FindByHash(_ context.Context, documentType, hash string) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Pattern
	for _, p := range s.patterns {
		if p.DocumentType == documentType && p.Signature.Hash == hash {
			out = append(out, clonePattern(p))
		}
	}
	sortPatterns(out)
	return out, nil
}

// FindCandidatesByType returns all non-superseded patterns for a
// document type.
func (s *PatternStore) FindCandidatesByType(_ context.Context, documentType string) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Pattern
	for _, p := range s.patterns {
		if p.DocumentType == documentType && !p.Superseded() {
			out = append(out, clonePattern(p))
		}
	}
	sortPatterns(out)
	return out, nil
}

// Insert stores a new pattern.
func (s *PatternStore) Insert(_ context.Context, p *domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patterns[p.ID]; exists {
		return domain.ErrAlreadyExists
	}
	p.StoreVersion = 1
	s.patterns[p.ID] = clonePattern(*p)
	return nil
}

// UpdateScope persists changed variant metadata under optimistic
// concurrency.
func (s *PatternStore) UpdateScope(_ context.Context, p *domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.patterns[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.StoreVersion != p.StoreVersion {
		return domain.ErrLibraryConflict
	}
	p.StoreVersion++
	s.patterns[p.ID] = clonePattern(*p)
	return nil
}

// MarkSuperseded points a pattern at its survivor. Idempotent for a
// repeated identical marking.
func (s *PatternStore) MarkSuperseded(_ context.Context, id, survivorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.patterns[id]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.SupersededBy == survivorID {
		return nil
	}
	stored.SupersededBy = survivorID
	stored.StoreVersion++
	s.patterns[id] = stored
	return nil
}

// Get retrieves a pattern by ID.
func (s *PatternStore) Get(_ context.Context, id string) (*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clonePattern(p)
	return &out, nil
}

// List returns all patterns, optionally filtered by document type.
func (s *PatternStore) List(_ context.Context, documentType string) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Pattern
	for _, p := range s.patterns {
		if documentType != "" && p.DocumentType != documentType {
			continue
		}
		out = append(out, clonePattern(p))
	}
	sortPatterns(out)
	return out, nil
}

func sortPatterns(patterns []domain.Pattern) {
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
}

// clonePattern copies the slices so callers cannot mutate stored
// state through the returned value.
func clonePattern(p domain.Pattern) domain.Pattern {
	p.Airlines = append([]string(nil), p.Airlines...)
	p.Versions = append([]string(nil), p.Versions...)
	return p
}
