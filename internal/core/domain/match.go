package domain

// Decision classifies the outcome of scoring a node instance against
// the pattern library.
type Decision string

const (
	// DecisionExact is a signature hash match under the same document
	// type and airline/version scope. Confidence 1.0.
	DecisionExact Decision = "EXACT"

	// DecisionFuzzy is a structural similarity match above the minimum
	// confidence threshold, possibly with a scope-relaxation penalty.
	DecisionFuzzy Decision = "FUZZY"

	// DecisionNew means no candidate scored above threshold; a new
	// pattern was created from this instance's signature.
	DecisionNew Decision = "NEW"

	// DecisionRejected marks oversized, truncated, or unparseable
	// instances. Rejected instances never create or update patterns.
	DecisionRejected Decision = "REJECTED"
)

// ScoreBreakdown itemizes how a confidence score was produced.
type ScoreBreakdown struct {
	// Exact is 1 when the signature hash matched under full scope.
	Exact float64 `json:"exact"`

	// Structural is the weighted descriptor similarity in [0,1].
	Structural float64 `json:"structural"`

	// ScopePenalty is the total relaxation penalty subtracted for
	// airline/version differences. Document type is never relaxed.
	ScopePenalty float64 `json:"scope_penalty"`
}

// MatchResult is the scoring outcome for a single node instance.
type MatchResult struct {
	// NodeInstanceID identifies the scored instance.
	NodeInstanceID string `json:"node_instance_id"`

	// PatternID is the matched pattern, empty for NEW and REJECTED.
	// For NEW it is the ID of the freshly created pattern.
	PatternID string `json:"pattern_id,omitempty"`

	// Confidence is the normalized score in [0,1].
	Confidence float64 `json:"confidence"`

	// Breakdown itemizes the score.
	Breakdown ScoreBreakdown `json:"breakdown"`

	// Decision classifies the outcome.
	Decision Decision `json:"decision"`

	// Seq mirrors the instance's per-run sequence number so reports
	// can be ordered deterministically.
	Seq int `json:"seq"`
}
