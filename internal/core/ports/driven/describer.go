package driven

import "context"

// Describer produces a human-readable description of a structural
// pattern from its canonical XML form. This is an optional, best-effort
// collaborator (typically LLM-backed): when nil, unreachable, or
// failing, patterns simply keep an empty description and matching is
// unaffected.
type Describer interface {
	// Describe returns a short natural-language summary of the
	// structure.
	Describe(ctx context.Context, documentType, canonicalXML string) (string, error)

	// Name identifies the backing service for diagnostics.
	Name() string
}
