package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
	"github.com/custodia-labs/strata-cli/internal/mask"
	"github.com/custodia-labs/strata-cli/internal/signature"
)

// Ensure PatternService implements the interface.
var _ driving.PatternService = (*PatternService)(nil)

// MinFuzzyConfidence is the minimum confidence for a fuzzy match.
// Below it the instance is NEW and a pattern is created.
const MinFuzzyConfidence = 0.72

// PatternService signs instances and scores them against the library.
// Library writes for a given document type go through a per-type lock:
// two concurrent NEW decisions for the same emerging shape must not
// create duplicate patterns. Reads are not serialized.
type PatternService struct {
	store     driven.PatternStore
	describer *DescriptionService

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPatternService creates a pattern service. describer may be nil;
// descriptions are best-effort.
func NewPatternService(store driven.PatternStore, describer *DescriptionService) *PatternService {
	return &PatternService{
		store:     store,
		describer: describer,
		locks:     make(map[string]*sync.Mutex),
	}
}

// typeLock returns the write lock for one document-type partition.
func (s *PatternService) typeLock(documentType string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[documentType]
	if !ok {
		l = &sync.Mutex{}
		s.locks[documentType] = l
	}
	return l
}

// Sign masks the instance's subtree in place and computes its
// signature. A masking failure rejects the instance: unmasked
// sensitive data never reaches hashing or persistence.
func (s *PatternService) Sign(instance *domain.NodeInstance, classifier mask.Classifier, significantFields []string) (domain.PatternSignature, error) {
	if instance.Subtree == nil {
		return domain.PatternSignature{}, fmt.Errorf("instance %s has no subtree: %w", instance.ID, domain.ErrInvalidInput)
	}

	masker := mask.New(classifier, false)
	if err := masker.Apply(instance.Subtree, instance.Subtree.Tag); err != nil {
		instance.Rejected = true
		instance.RejectCause = domain.RejectMaskingFailed
		instance.Canonical = ""
		instance.Subtree = nil
		return domain.PatternSignature{}, err
	}

	// Re-serialize so the persisted canonical form is the masked one.
	instance.Canonical = instance.Subtree.Serialize()
	instance.ByteSize = len(instance.Canonical)

	gen := signature.NewGenerator(significantFields)
	return gen.Sign(instance.Subtree), nil
}

// SignBestEffort is Sign with best-effort masking: classifier failures
// mask with the safe default placeholder instead of rejecting.
func (s *PatternService) SignBestEffort(instance *domain.NodeInstance, classifier mask.Classifier, significantFields []string) (domain.PatternSignature, error) {
	if instance.Subtree == nil {
		return domain.PatternSignature{}, fmt.Errorf("instance %s has no subtree: %w", instance.ID, domain.ErrInvalidInput)
	}
	masker := mask.New(classifier, true)
	if err := masker.Apply(instance.Subtree, instance.Subtree.Tag); err != nil {
		return domain.PatternSignature{}, err
	}
	instance.Canonical = instance.Subtree.Serialize()
	instance.ByteSize = len(instance.Canonical)
	gen := signature.NewGenerator(significantFields)
	return gen.Sign(instance.Subtree), nil
}

// ScoreAndRecord matches one signed instance against the library and
// records the outcome. Document type is the mandatory scope and is
// never relaxed; airline and version only attract a confidence
// penalty.
func (s *PatternService) ScoreAndRecord(ctx context.Context, instance *domain.NodeInstance, sig domain.PatternSignature) (*domain.MatchResult, error) {
	result := &domain.MatchResult{
		NodeInstanceID: instance.ID,
		Seq:            instance.Seq,
	}

	// Oversized, truncated and unparseable instances are recorded but
	// never create or update a pattern.
	if instance.Rejected || instance.Truncated {
		result.Decision = domain.DecisionRejected
		return result, nil
	}
	if instance.DocumentType == "" {
		return nil, fmt.Errorf("instance %s: %w", instance.ID, domain.ErrInvalidInput)
	}

	lock := s.typeLock(instance.DocumentType)
	lock.Lock()
	defer lock.Unlock()

	// Priority 1: exact hash match within the document type. A scope
	// difference does not demote the match; it is learned into the
	// pattern's variant metadata instead.
	exact, err := s.findExact(ctx, instance, sig.Hash)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		result.Decision = domain.DecisionExact
		result.Confidence = 1.0
		result.Breakdown = domain.ScoreBreakdown{Exact: 1.0, Structural: 1.0}
		result.PatternID = exact.ID
		if err := s.recordObservation(ctx, exact, instance.Scope); err != nil {
			logger.Warn("recording observation on %s: %v", exact.ID, err)
		}
		return result, nil
	}

	// Priority 2: fuzzy structural match with scope relaxation.
	candidates, err := s.store.FindCandidatesByType(ctx, instance.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	best, breakdown := s.pickBest(instance, sig, candidates)
	if best != nil {
		confidence := breakdown.Structural - breakdown.ScopePenalty
		result.Decision = domain.DecisionFuzzy
		result.Confidence = confidence
		result.Breakdown = breakdown
		result.PatternID = best.ID
		if err := s.recordObservation(ctx, best, instance.Scope); err != nil {
			logger.Warn("recording observation on %s: %v", best.ID, err)
		}
		return result, nil
	}

	// No candidate above threshold: the shape is novel.
	created, err := s.createPattern(ctx, instance, sig)
	if err != nil {
		return nil, err
	}
	result.Decision = domain.DecisionNew
	result.PatternID = created.ID
	return result, nil
}

// findExact returns the effective (non-superseded) pattern with the
// given hash, or nil.
func (s *PatternService) findExact(ctx context.Context, instance *domain.NodeInstance, hash string) (*domain.Pattern, error) {
	matches, err := s.store.FindByHash(ctx, instance.DocumentType, hash)
	if err != nil {
		return nil, fmt.Errorf("hash lookup: %w", err)
	}
	for i := range matches {
		p := matches[i]
		if p.DocumentType != instance.DocumentType {
			return nil, fmt.Errorf("pattern %s type %q vs instance type %q: %w",
				p.ID, p.DocumentType, instance.DocumentType, domain.ErrScopeViolation)
		}
		if !p.Superseded() {
			return &p, nil
		}
		// One-hop redirect through the supersession pointer.
		survivor, err := s.store.Get(ctx, p.SupersededBy)
		if err == nil && survivor != nil {
			return survivor, nil
		}
	}
	return nil, nil
}

// pickBest scores every candidate and returns the highest one at or
// above MinFuzzyConfidence. Ties break to the most recently updated
// pattern, then the lowest ID.
func (s *PatternService) pickBest(instance *domain.NodeInstance, sig domain.PatternSignature, candidates []domain.Pattern) (*domain.Pattern, domain.ScoreBreakdown) {
	var best *domain.Pattern
	var bestBreakdown domain.ScoreBreakdown
	bestConfidence := -1.0

	for i := range candidates {
		c := &candidates[i]
		if c.DocumentType != instance.DocumentType || c.Superseded() {
			continue
		}

		structural := 1.0
		if c.Signature.Hash != sig.Hash {
			structural = signature.Similarity(sig.Descriptor, c.Signature.Descriptor)
		}
		penalty := 0.0
		if instance.Scope.Airline != "" && !inStrings(c.Airlines, instance.Scope.Airline) {
			penalty += signature.ScopePenalty
		}
		if instance.Scope.Version != "" && !inStrings(c.Versions, instance.Scope.Version) {
			penalty += signature.ScopePenalty
		}
		confidence := structural - penalty
		if confidence < MinFuzzyConfidence {
			continue
		}

		if best == nil || confidence > bestConfidence ||
			(confidence == bestConfidence && moreRecent(c, best)) {
			best = c
			bestConfidence = confidence
			bestBreakdown = domain.ScoreBreakdown{Structural: structural, ScopePenalty: penalty}
		}
	}
	return best, bestBreakdown
}

func moreRecent(a, b *domain.Pattern) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func inStrings(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// recordObservation unions the observation's scope into the pattern,
// retrying once on a concurrent-write conflict. A second conflict is a
// soft failure: the match stands, only the metadata update is lost.
func (s *PatternService) recordObservation(ctx context.Context, p *domain.Pattern, scope domain.Scope) error {
	p.ObserveScope(scope)
	p.UpdatedAt = time.Now().UTC()
	err := s.store.UpdateScope(ctx, p)
	if !errors.Is(err, domain.ErrLibraryConflict) {
		return err
	}

	logger.Debug("library conflict updating %s, retrying with re-read", p.ID)
	fresh, gerr := s.store.Get(ctx, p.ID)
	if gerr != nil {
		return gerr
	}
	fresh.ObserveScope(scope)
	fresh.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateScope(ctx, fresh); err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	*p = *fresh
	return nil
}

// createPattern inserts a new pattern seeded from the instance's
// signature and first observed scope. The description is filled in
// best-effort and never blocks pattern creation on failure.
func (s *PatternService) createPattern(ctx context.Context, instance *domain.NodeInstance, sig domain.PatternSignature) (*domain.Pattern, error) {
	now := time.Now().UTC()
	p := &domain.Pattern{
		ID:           uuid.NewString(),
		DocumentType: instance.DocumentType,
		Signature:    sig,
		ExampleCount: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Airlines = domain.MergeSets(nil, []string{instance.Scope.Airline})
	p.Versions = domain.MergeSets(nil, []string{instance.Scope.Version})

	if s.describer != nil {
		if desc, err := s.describer.Describe(ctx, instance.DocumentType, instance.Canonical); err == nil {
			p.Description = desc
		} else {
			logger.Debug("description unavailable for new pattern: %v", err)
		}
	}

	err := s.store.Insert(ctx, p)
	if errors.Is(err, domain.ErrLibraryConflict) || errors.Is(err, domain.ErrAlreadyExists) {
		// Another writer recorded the same emerging shape first; re-read
		// and match against it instead of duplicating.
		logger.Debug("insert conflict for %s, re-reading by hash", p.ID)
		existing, ferr := s.findExact(ctx, instance, sig.Hash)
		if ferr == nil && existing != nil {
			if oerr := s.recordObservation(ctx, existing, instance.Scope); oerr != nil {
				logger.Warn("recording observation after insert conflict: %v", oerr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("insert retry: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting pattern: %w", err)
	}
	logger.Info("new pattern %s for %s (hash %.12s…)", p.ID, p.DocumentType, sig.Hash)
	return p, nil
}

// List returns library patterns for a document type.
func (s *PatternService) List(ctx context.Context, documentType string) ([]domain.Pattern, error) {
	return s.store.List(ctx, documentType)
}

// Resolve returns the effective pattern for an ID, walking the
// supersession pointer at most one hop.
func (s *PatternService) Resolve(ctx context.Context, id string) (*domain.Pattern, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Superseded() {
		return p, nil
	}
	survivor, err := s.store.Get(ctx, p.SupersededBy)
	if err != nil {
		return nil, fmt.Errorf("resolving supersession of %s: %w", id, err)
	}
	return survivor, nil
}
