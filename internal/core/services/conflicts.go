package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/logger"
	"github.com/custodia-labs/strata-cli/internal/signature"
)

// Ensure ConflictService implements the interface.
var _ driving.ConflictService = (*ConflictService)(nil)

// ConflictService finds near-duplicate patterns within one
// document-type partition: entries that are the same shape after
// masking noise is ignored, recorded separately due to transient scope
// differences.
type ConflictService struct {
	store driven.PatternStore
}

// NewConflictService creates a conflict service.
func NewConflictService(store driven.PatternStore) *ConflictService {
	return &ConflictService{store: store}
}

// DetectConflicts groups non-superseded patterns of one document type
// by mask-normalized shape hash and proposes one merge per extra group
// member. The survivor is the member with the most example
// observations, tie-break lowest ID.
func (s *ConflictService) DetectConflicts(ctx context.Context, documentType string) ([]driving.ProposedMerge, error) {
	if documentType == "" {
		return nil, fmt.Errorf("document type required: %w", domain.ErrInvalidInput)
	}
	patterns, err := s.store.FindCandidatesByType(ctx, documentType)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}

	groups := make(map[string][]domain.Pattern)
	for _, p := range patterns {
		if p.Superseded() {
			continue
		}
		shape := signature.ShapeHash(p.Signature.Descriptor)
		groups[shape] = append(groups[shape], p)
	}

	var proposals []driving.ProposedMerge
	for shape, group := range groups {
		if len(group) < 2 {
			continue
		}
		sortBySurvivorship(group)
		survivor := group[0]
		for _, loser := range group[1:] {
			proposals = append(proposals, driving.ProposedMerge{
				SurvivorID:   survivor.ID,
				SupersededID: loser.ID,
				ShapeHash:    shape,
			})
		}
	}
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].SurvivorID != proposals[j].SurvivorID {
			return proposals[i].SurvivorID < proposals[j].SurvivorID
		}
		return proposals[i].SupersededID < proposals[j].SupersededID
	})
	return proposals, nil
}

// sortBySurvivorship orders a shape group canonical-survivor first:
// most examples, then lowest ID.
func sortBySurvivorship(group []domain.Pattern) {
	sort.Slice(group, func(i, j int) bool {
		if group[i].ExampleCount != group[j].ExampleCount {
			return group[i].ExampleCount > group[j].ExampleCount
		}
		return group[i].ID < group[j].ID
	})
}

// ApplyMerge merges the pair: survivor picked by example count (tie
// lowest ID), the other superseded, variant metadata unioned into the
// survivor. Both patterns must share a document type. Inputs that were
// already superseded by an earlier merge are resolved to their live
// survivors first, so supersession pointers always land on a
// non-superseded pattern. Applying the same merge again is a no-op, so
// concurrent merges of one pair are harmless rather than errors.
func (s *ConflictService) ApplyMerge(ctx context.Context, idA, idB string) error {
	if idA == idB {
		return fmt.Errorf("cannot merge a pattern with itself: %w", domain.ErrInvalidInput)
	}
	a, err := s.store.Get(ctx, idA)
	if err != nil {
		return fmt.Errorf("loading %s: %w", idA, err)
	}
	b, err := s.store.Get(ctx, idB)
	if err != nil {
		return fmt.Errorf("loading %s: %w", idB, err)
	}
	if a.DocumentType != b.DocumentType {
		return fmt.Errorf("merging %q into %q: %w", b.DocumentType, a.DocumentType, domain.ErrScopeViolation)
	}

	if a, err = s.resolveLive(ctx, a); err != nil {
		return err
	}
	if b, err = s.resolveLive(ctx, b); err != nil {
		return err
	}
	// Idempotency: the pair may already be merged, possibly by a
	// concurrent run working from an older library snapshot.
	if a.ID == b.ID {
		logger.Debug("merge %s/%s already applied", idA, idB)
		return nil
	}

	pair := []domain.Pattern{*a, *b}
	sortBySurvivorship(pair)
	survivor, loser := pair[0], pair[1]

	// Supersession chains stay one hop: if the loser was itself a
	// survivor of earlier merges, re-point its dependents.
	dependents, err := s.store.List(ctx, survivor.DocumentType)
	if err != nil {
		return fmt.Errorf("listing dependents: %w", err)
	}
	for i := range dependents {
		d := dependents[i]
		if d.SupersededBy != loser.ID {
			continue
		}
		if err := s.markWithRetry(ctx, d.ID, survivor.ID); err != nil {
			return fmt.Errorf("re-pointing %s: %w", d.ID, err)
		}
	}

	survivor.Airlines = domain.MergeSets(survivor.Airlines, loser.Airlines)
	survivor.Versions = domain.MergeSets(survivor.Versions, loser.Versions)
	survivor.ExampleCount += loser.ExampleCount
	if survivor.Description == "" {
		survivor.Description = loser.Description
	}
	survivor.UpdatedAt = time.Now().UTC()

	if err := s.updateWithRetry(ctx, &survivor); err != nil {
		return fmt.Errorf("updating survivor %s: %w", survivor.ID, err)
	}
	if err := s.markWithRetry(ctx, loser.ID, survivor.ID); err != nil {
		return fmt.Errorf("superseding %s: %w", loser.ID, err)
	}
	logger.Info("merged pattern %s into %s", loser.ID, survivor.ID)
	return nil
}

// resolveLive follows supersession pointers to the live pattern. With
// chains kept at one hop this is a single read, but stores written by
// older binaries may carry longer chains, so it walks until done.
func (s *ConflictService) resolveLive(ctx context.Context, p *domain.Pattern) (*domain.Pattern, error) {
	for p.Superseded() {
		next, err := s.store.Get(ctx, p.SupersededBy)
		if err != nil {
			return nil, fmt.Errorf("resolving survivor of %s: %w", p.ID, err)
		}
		p = next
	}
	return p, nil
}

// markWithRetry retries a supersession write once on a version
// conflict. The store re-reads the row on every call, so the retry
// carries the fresh version.
func (s *ConflictService) markWithRetry(ctx context.Context, id, survivorID string) error {
	err := s.store.MarkSuperseded(ctx, id, survivorID)
	if !errors.Is(err, domain.ErrLibraryConflict) {
		return err
	}
	return s.store.MarkSuperseded(ctx, id, survivorID)
}

func (s *ConflictService) updateWithRetry(ctx context.Context, p *domain.Pattern) error {
	err := s.store.UpdateScope(ctx, p)
	if !errors.Is(err, domain.ErrLibraryConflict) {
		return err
	}
	fresh, gerr := s.store.Get(ctx, p.ID)
	if gerr != nil {
		return gerr
	}
	fresh.Airlines = domain.MergeSets(fresh.Airlines, p.Airlines)
	fresh.Versions = domain.MergeSets(fresh.Versions, p.Versions)
	if fresh.ExampleCount < p.ExampleCount {
		fresh.ExampleCount = p.ExampleCount
	}
	if fresh.Description == "" {
		fresh.Description = p.Description
	}
	fresh.UpdatedAt = time.Now().UTC()
	return s.store.UpdateScope(ctx, fresh)
}
