// Package driving provides interfaces for use-case entry points (primary/inbound ports).
package driving

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/mask"
)

// RunRequest describes one extraction run over a single XML document
// stream.
type RunRequest struct {
	// DocumentID identifies the source document.
	DocumentID string

	// DocumentVersion selects target paths and aliases.
	DocumentVersion string

	// Airline is the observed airline scope for instances of this run.
	Airline string

	// Reader is the XML stream. Parsed strictly sequentially, consumed
	// exactly once.
	Reader io.Reader

	// Classifier is the externally supplied masking policy. Nil means
	// everything is plain.
	Classifier mask.Classifier

	// BestEffortMasking leaves fields masked with a safe default when
	// the classifier fails, instead of rejecting the instance.
	BestEffortMasking bool

	// ByteBudget caps each extracted subtree's serialized size.
	// Zero selects the default.
	ByteBudget int

	// Parallelism bounds concurrent downstream workers (masking,
	// signing, scoring). Zero selects the default of 2.
	Parallelism int
}

// RunReport is the outcome of a run: results sorted by per-run
// sequence number, so reporting is deterministic regardless of worker
// completion order.
type RunReport struct {
	RunID     string                  `json:"run_id"`
	Results   []domain.MatchResult    `json:"results"`
	Instances int                     `json:"instances"`
	Decisions map[domain.Decision]int `json:"decisions"`
	Duration  time.Duration           `json:"duration"`

	// Cancelled is set when the run was aborted mid-stream. Partial
	// results are valid and reported, not discarded.
	Cancelled bool `json:"cancelled"`
}

// ExtractionService runs the full pipeline: stream matching, bounded
// extraction, masking, signing, scoring, library update.
type ExtractionService interface {
	// Run executes one extraction run end to end. When the stream fails
	// partway, the report covers everything scored before the failure
	// and is returned alongside the error.
	Run(ctx context.Context, req RunRequest) (*RunReport, error)

	// Match performs only the streaming extraction stage and returns a
	// lazy, finite sequence of node instances. The channel is closed
	// when the stream ends; the sequence is not restartable once
	// consumed.
	Match(ctx context.Context, req RunRequest) (<-chan domain.NodeInstance, error)
}
