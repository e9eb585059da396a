// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// PatternStore persists the pattern library. It is the only cross-run
// shared mutable resource: writes within one document-type partition
// are serialized by the scoring service, reads may proceed concurrently
// with a snapshot-consistent view.
//
// Implementations use optimistic concurrency: Insert, UpdateScope and
// MarkSuperseded return domain.ErrLibraryConflict when a concurrent
// write is detected, and callers retry once with a re-read.
type PatternStore interface {
	// FindByHash returns patterns with the given signature hash within
	// a document type. Superseded patterns are included; callers walk
	// the supersession pointer at read time.
	FindByHash(ctx context.Context, documentType, hash string) ([]domain.Pattern, error)

	// FindCandidatesByType returns all non-superseded patterns for a
	// document type, the fuzzy scorer's candidate set.
	FindCandidatesByType(ctx context.Context, documentType string) ([]domain.Pattern, error)

	// Insert stores a new pattern. Returns domain.ErrAlreadyExists if
	// the ID is taken.
	Insert(ctx context.Context, p *domain.Pattern) error

	// UpdateScope persists changed variant metadata (airlines,
	// versions, example count, description). The pattern's
	// StoreVersion must match the stored one.
	UpdateScope(ctx context.Context, p *domain.Pattern) error

	// MarkSuperseded points pattern id at survivorID. Marking an
	// already-superseded pattern with the same survivor is a no-op, so
	// merges are idempotent.
	MarkSuperseded(ctx context.Context, id, survivorID string) error

	// Get retrieves a single pattern by ID.
	Get(ctx context.Context, id string) (*domain.Pattern, error)

	// List returns all patterns, optionally filtered by document type
	// (empty string means all). Includes superseded entries.
	List(ctx context.Context, documentType string) ([]domain.Pattern, error)
}
