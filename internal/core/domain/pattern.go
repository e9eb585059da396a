package domain

import (
	"sort"
	"time"
)

// Descriptor is the compact structural form of a subtree: tag name,
// sorted attribute-name set, ordered child descriptors, child count.
// Leaf text is excluded except for structurally significant fields,
// whose post-masking value is carried verbatim. Two subtrees with the
// same shape always produce equal descriptors regardless of incidental
// value differences.
type Descriptor struct {
	// Tag is the namespace-qualified element name.
	Tag string

	// AttrNames is the sorted set of attribute names.
	AttrNames []string

	// Value is the post-masking text of a structurally significant
	// field. Empty for all other elements.
	Value string

	// Children are the child descriptors in document order.
	Children []Descriptor

	// ChildCount duplicates len(Children) so cardinality survives a
	// round-trip through storage even when children are elided.
	ChildCount int
}

// TagMultiset counts every tag in the descriptor tree. Used by the
// fuzzy scorer.
func (d Descriptor) TagMultiset() map[string]int {
	counts := make(map[string]int)
	d.countTags(counts)
	return counts
}

func (d Descriptor) countTags(counts map[string]int) {
	counts[d.Tag]++
	for _, c := range d.Children {
		c.countTags(counts)
	}
}

// AttrNameSet collects every "tag@attr" pair in the descriptor tree.
func (d Descriptor) AttrNameSet() map[string]struct{} {
	set := make(map[string]struct{})
	d.collectAttrs(set)
	return set
}

func (d Descriptor) collectAttrs(set map[string]struct{}) {
	for _, a := range d.AttrNames {
		set[d.Tag+"@"+a] = struct{}{}
	}
	for _, c := range d.Children {
		c.collectAttrs(set)
	}
}

// PatternSignature is a deterministic fingerprint plus the structural
// descriptor it was computed from. Two node instances with identical
// canonical form always yield identical signatures, across process
// restarts.
type PatternSignature struct {
	// Hash is the hex-encoded SHA-256 fingerprint of the descriptor's
	// length-prefixed serialization.
	Hash string

	// Descriptor is the structural form the hash covers.
	Descriptor Descriptor
}

// Pattern is a library entry: the generalization of one or more
// structurally identical node instances, scoped to a document type.
type Pattern struct {
	// ID is the unique identifier for the pattern.
	ID string

	// DocumentType is the mandatory scope key. Matching never crosses
	// document types.
	DocumentType string

	// Signature is the pattern's fingerprint and descriptor.
	Signature PatternSignature

	// Airlines is the sorted set of airlines observed for this shape.
	Airlines []string

	// Versions is the sorted set of document versions observed.
	Versions []string

	// ExampleCount is the number of instances matched to this pattern.
	ExampleCount int

	// Description is a human-readable summary filled in by an external
	// collaborator. Never required for matching; empty when absent.
	Description string

	// SupersededBy points at the surviving pattern after a merge. At
	// most one hop: a superseded pattern never points at another
	// superseded pattern.
	SupersededBy string

	// StoreVersion is the optimistic concurrency token maintained by
	// the pattern store.
	StoreVersion int

	// CreatedAt is when the pattern was first recorded.
	CreatedAt time.Time

	// UpdatedAt is when variant metadata last changed.
	UpdatedAt time.Time
}

// Superseded reports whether this pattern has been merged away.
func (p *Pattern) Superseded() bool {
	return p.SupersededBy != ""
}

// ObserveScope unions an observation's airline and version into the
// pattern's variant metadata and bumps the example count. This is how
// cross-airline and cross-version matching is learned without relaxing
// the document-type constraint.
func (p *Pattern) ObserveScope(scope Scope) {
	p.Airlines = addToSet(p.Airlines, scope.Airline)
	p.Versions = addToSet(p.Versions, scope.Version)
	p.ExampleCount++
}

// HasScope reports whether the pattern has already seen the given
// airline and version.
func (p *Pattern) HasScope(scope Scope) bool {
	return inSet(p.Airlines, scope.Airline) && inSet(p.Versions, scope.Version)
}

func addToSet(set []string, v string) []string {
	if v == "" || inSet(set, v) {
		return set
	}
	set = append(set, v)
	sort.Strings(set)
	return set
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MergeSets unions two sorted string sets.
func MergeSets(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		out = addToSet(out, v)
	}
	return out
}
