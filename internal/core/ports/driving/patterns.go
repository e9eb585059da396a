package driving

import (
	"context"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/mask"
)

// PatternService signs node instances and scores them against the
// pattern library.
type PatternService interface {
	// Sign masks the instance's subtree with the supplied classifier
	// and computes its deterministic signature. The instance's subtree
	// is masked in place.
	Sign(instance *domain.NodeInstance, classifier mask.Classifier, significantFields []string) (domain.PatternSignature, error)

	// ScoreAndRecord matches a signed instance against the library
	// under mandatory document-type scoping and records the outcome:
	// scope metadata update on EXACT/FUZZY, pattern creation on NEW.
	// Rejected instances are recorded but never touch the library.
	ScoreAndRecord(ctx context.Context, instance *domain.NodeInstance, sig domain.PatternSignature) (*domain.MatchResult, error)

	// List returns library patterns for a document type (empty string
	// for all).
	List(ctx context.Context, documentType string) ([]domain.Pattern, error)

	// Resolve returns the effective pattern for an ID, walking the
	// supersession pointer at most one hop.
	Resolve(ctx context.Context, id string) (*domain.Pattern, error)
}

// ProposedMerge is one conflict-detector finding: two patterns that are
// the same shape modulo masking noise.
type ProposedMerge struct {
	// SurvivorID is the canonical pattern (most examples, tie-break
	// lowest ID).
	SurvivorID string `json:"survivor_id"`

	// SupersededID is the pattern to be merged away.
	SupersededID string `json:"superseded_id"`

	// ShapeHash is the common mask-normalized shape hash.
	ShapeHash string `json:"shape_hash"`
}

// ConflictService finds and merges near-duplicate patterns within one
// document-type partition.
type ConflictService interface {
	// DetectConflicts proposes merges for patterns whose descriptors
	// are identical after ignoring masked value differences.
	DetectConflicts(ctx context.Context, documentType string) ([]ProposedMerge, error)

	// ApplyMerge merges pattern b into pattern a's shape group: the
	// survivor is picked by example count (tie lowest ID), the other
	// is superseded, variant metadata is unioned. Applying the same
	// merge twice is a no-op.
	ApplyMerge(ctx context.Context, idA, idB string) error
}
