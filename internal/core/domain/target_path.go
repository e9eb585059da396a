package domain

import "strings"

// PathSeparator splits a path expression into element segments.
// Segments are namespace-qualified local names, e.g.
// "OrderViewRS/Response/DataLists/PaxList".
const PathSeparator = "/"

// TargetPath is one configured extraction target. It is immutable at
// match time; editing is the configuration collaborator's concern.
type TargetPath struct {
	// ID is the unique identifier for the target path.
	ID string

	// DocumentType is the owning message kind (e.g. "OrderViewRS").
	// It is the mandatory matching scope for every pattern derived
	// from this target and is never relaxed.
	DocumentType string

	// Version is the document version this path is configured for.
	Version string

	// Path is the canonical slash-separated path expression.
	Path string

	// Enabled excludes the path from trie construction when false.
	Enabled bool

	// ExpectedRefs names leaf fields whose values are cross-references
	// within the document. Their cardinality and ordering are
	// structurally meaningful and preserved by the masking pass.
	ExpectedRefs []string

	// SignificantFields names leaf fields whose values change the
	// meaning of the structure (e.g. enumerated type codes). Their
	// post-masking values are included in the signature descriptor.
	SignificantFields []string
}

// Segments splits the path expression into its element segments.
// Empty segments from leading or doubled separators are dropped.
func (t TargetPath) Segments() []string {
	return SplitPath(t.Path)
}

// SplitPath splits a slash-separated path expression, dropping empty
// segments.
func SplitPath(path string) []string {
	parts := strings.Split(path, PathSeparator)
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// PathAlias maps a canonical path to an alternate literal form under a
// specific document version, compensating for renamed or relocated
// elements across schema revisions.
type PathAlias struct {
	// Version the alias applies to.
	Version string

	// Canonical is the configured canonical path.
	Canonical string

	// Alternate is the literal path to try instead. Multiple aliases
	// for the same canonical path form a fallback chain consulted in
	// Priority order.
	Alternate string

	// Priority orders the fallback chain; lower is consulted first.
	Priority int
}
