package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/extract"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Ensure ExtractionService implements the interface.
var _ driving.ExtractionService = (*ExtractionService)(nil)

// DefaultParallelism bounds concurrent downstream workers per run.
// Kept small to respect downstream collaborator rate limits on the
// description step.
const DefaultParallelism = 2

// matchQueueDepth buffers matches between the sequential parser and
// the worker pool so the parser rarely waits on scoring.
const matchQueueDepth = 64

// ExtractionService orchestrates one run: sequential stream matching,
// then masking, signing and scoring on a bounded worker pool. The trie
// and all per-run buffers are run-local; the pattern library is the
// only shared resource.
type ExtractionService struct {
	config   driven.ConfigProvider
	patterns *PatternService
}

// NewExtractionService creates an extraction service.
func NewExtractionService(config driven.ConfigProvider, patterns *PatternService) *ExtractionService {
	return &ExtractionService{config: config, patterns: patterns}
}

// runSetup is the per-run immutable state built from configuration.
type runSetup struct {
	runID     string
	matcher   *extract.StreamMatcher
	pathsByID map[string]domain.TargetPath
}

func (s *ExtractionService) setup(ctx context.Context, req driving.RunRequest) (*runSetup, error) {
	paths, err := s.config.TargetPaths(ctx, req.DocumentVersion)
	if err != nil {
		return nil, fmt.Errorf("loading target paths: %w", err)
	}
	aliases, err := s.config.Aliases(ctx, req.DocumentVersion)
	if err != nil {
		return nil, fmt.Errorf("loading aliases: %w", err)
	}

	resolver := extract.NewAliasResolver(aliases)
	trie, err := extract.BuildTrie(req.DocumentVersion, paths, resolver)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", req.DocumentVersion, err)
	}

	byID := make(map[string]domain.TargetPath, len(paths))
	for _, tp := range paths {
		byID[tp.ID] = tp
	}
	return &runSetup{
		runID:     uuid.NewString(),
		matcher:   extract.NewStreamMatcher(trie, req.ByteBudget),
		pathsByID: byID,
	}, nil
}

// instanceFromMatch builds the immutable NodeInstance for one match
// event.
func (r *runSetup) instanceFromMatch(req driving.RunRequest, m extract.Match) domain.NodeInstance {
	tp := r.pathsByID[m.TargetID]
	instance := domain.NodeInstance{
		ID:           uuid.NewString(),
		RunID:        r.runID,
		DocumentID:   req.DocumentID,
		TargetPathID: m.TargetID,
		DocumentType: tp.DocumentType,
		Scope:        domain.Scope{Airline: req.Airline, Version: req.DocumentVersion},
		Seq:          m.Seq,
		Subtree:      m.Node,
		ByteSize:     m.ByteSize,
		Truncated:    m.Truncated,
		Rejected:     m.Rejected,
		RejectCause:  m.RejectCause,
		CreatedAt:    time.Now().UTC(),
	}
	if m.Node != nil {
		instance.Canonical = m.Node.Serialize()
	}
	return instance
}

// Run executes one extraction run end to end. Per-instance failures
// are contained and reported in that instance's result; only a
// configuration failure aborts the run. Cancellation stops new match
// events while in-flight workers finish, so partial results are valid.
func (s *ExtractionService) Run(ctx context.Context, req driving.RunRequest) (*driving.RunReport, error) {
	start := time.Now()
	setup, err := s.setup(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Section("Extraction")
	logger.Info("run %s: document %s version %s", setup.runID, req.DocumentID, req.DocumentVersion)

	parallelism := req.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	work := make(chan domain.NodeInstance, matchQueueDepth)

	var (
		mu        sync.Mutex
		results   []domain.MatchResult
		cancelled bool
	)

	// Workers: masking, signing, scoring. Library writes serialize per
	// document type inside the pattern service.
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i := 0; i < parallelism; i++ {
		g.Go(func() error {
			for instance := range work {
				result := s.score(ctx, req, setup, instance)
				mu.Lock()
				results = append(results, *result)
				mu.Unlock()
			}
			return nil
		})
	}

	// The parser runs strictly sequentially; it is the only producer.
	parseErr := setup.matcher.Run(ctx, req.Reader, func(m extract.Match) bool {
		work <- setup.instanceFromMatch(req, m)
		return true
	})
	close(work)
	if errors.Is(parseErr, domain.ErrRunCancelled) {
		cancelled = true
		parseErr = nil
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Worker completion order is arbitrary; sequence numbers restore
	// deterministic reporting.
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })

	report := &driving.RunReport{
		RunID:     setup.runID,
		Results:   results,
		Instances: len(results),
		Decisions: make(map[domain.Decision]int),
		Duration:  time.Since(start),
		Cancelled: cancelled,
	}
	for _, r := range results {
		report.Decisions[r.Decision]++
	}

	// An I/O failure mid-document ends the stream the same way a syntax
	// error does: everything scored before the failure is still valid,
	// so the partial report travels with the error.
	if parseErr != nil {
		logger.Warn("run %s: stream failed after %d instance(s): %v", setup.runID, report.Instances, parseErr)
		return report, fmt.Errorf("stream: %w", parseErr)
	}
	logger.Info("run %s: %d instance(s) in %s", setup.runID, report.Instances, report.Duration)
	return report, nil
}

// score runs the downstream pipeline for one instance. Failures are
// contained: they reject the instance, never the run.
func (s *ExtractionService) score(ctx context.Context, req driving.RunRequest, setup *runSetup, instance domain.NodeInstance) *domain.MatchResult {
	var sig domain.PatternSignature
	if !instance.Rejected && instance.Subtree != nil {
		tp := setup.pathsByID[instance.TargetPathID]
		var err error
		if req.BestEffortMasking {
			sig, err = s.patterns.SignBestEffort(&instance, req.Classifier, tp.SignificantFields)
		} else {
			sig, err = s.patterns.Sign(&instance, req.Classifier, tp.SignificantFields)
		}
		if err != nil {
			logger.Warn("signing instance %s: %v", instance.ID, err)
		}
	}

	result, err := s.patterns.ScoreAndRecord(ctx, &instance, sig)
	if err != nil {
		logger.Warn("scoring instance %s: %v", instance.ID, err)
		return &domain.MatchResult{
			NodeInstanceID: instance.ID,
			Decision:       domain.DecisionRejected,
			Seq:            instance.Seq,
		}
	}
	return result
}

// Match performs only the streaming extraction stage: a lazy, finite
// sequence of node instances in stream order, closed at end of stream.
// Not restartable once consumed.
func (s *ExtractionService) Match(ctx context.Context, req driving.RunRequest) (<-chan domain.NodeInstance, error) {
	setup, err := s.setup(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.NodeInstance)
	go func() {
		defer close(out)
		err := setup.matcher.Run(ctx, req.Reader, func(m extract.Match) bool {
			select {
			case out <- setup.instanceFromMatch(req, m):
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && !errors.Is(err, domain.ErrRunCancelled) {
			logger.Warn("match stream: %v", err)
		}
	}()
	return out, nil
}
