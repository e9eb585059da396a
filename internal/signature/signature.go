// Package signature reduces a masked canonical subtree to its
// structural descriptor and computes a deterministic fingerprint over
// it. The hash covers a length-prefixed, order-preserving binary
// serialization of the descriptor, never free-form text, so incidental
// whitespace or encoding differences cannot change it. Same descriptor
// tuple, same hash, across process restarts.
package signature

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// Generator computes signatures for one target path's instances.
// significant holds the field paths (relative to the subtree root's
// tag) whose post-masking values are structurally meaningful and
// included verbatim in the descriptor.
type Generator struct {
	significant map[string]bool
}

// NewGenerator creates a generator. significantFields use the same
// slash-separated form as classifier field paths, rooted at the
// subtree's own tag (e.g. "PaxList/Pax/PTC").
func NewGenerator(significantFields []string) *Generator {
	sig := make(map[string]bool, len(significantFields))
	for _, f := range significantFields {
		sig[f] = true
	}
	return &Generator{significant: sig}
}

// Descriptor computes the canonical structural descriptor of a subtree:
// recursively (tag, sorted attribute-name set, ordered child
// descriptors, child count), with leaf text excluded except for
// structurally significant fields.
func (g *Generator) Descriptor(node *domain.Node) domain.Descriptor {
	return g.descriptor(node, node.Tag)
}

func (g *Generator) descriptor(node *domain.Node, path string) domain.Descriptor {
	d := domain.Descriptor{Tag: node.Tag}
	for _, a := range node.Attrs {
		d.AttrNames = append(d.AttrNames, a.Name)
	}
	// Attrs are already lexicographic on canonical nodes; AttrNames
	// inherits that order.
	if g.significant[path] && len(node.Children) == 0 {
		d.Value = node.Text
	}
	for _, c := range node.Children {
		d.Children = append(d.Children, g.descriptor(c, path+domain.PathSeparator+c.Tag))
	}
	d.ChildCount = len(d.Children)
	return d
}

// Sign computes the full signature for a masked subtree.
func (g *Generator) Sign(node *domain.Node) domain.PatternSignature {
	d := g.Descriptor(node)
	return domain.PatternSignature{Hash: Fingerprint(d), Descriptor: d}
}

// Fingerprint hashes a descriptor. The serialization is length-prefixed
// and order-preserving: equal descriptors always produce equal hashes,
// and no concatenation ambiguity can make distinct descriptors collide
// structurally.
func Fingerprint(d domain.Descriptor) string {
	h := sha256.New()
	writeDescriptor(h, d)
	return hex.EncodeToString(h.Sum(nil))
}

// ShapeHash hashes a descriptor with significant values blanked. Two
// patterns with equal shape hashes are the same structure modulo
// masking noise; the conflict detector uses this to find merge
// candidates.
func ShapeHash(d domain.Descriptor) string {
	h := sha256.New()
	writeDescriptor(h, blankValues(d))
	return hex.EncodeToString(h.Sum(nil))
}

func blankValues(d domain.Descriptor) domain.Descriptor {
	d.Value = ""
	children := make([]domain.Descriptor, len(d.Children))
	for i, c := range d.Children {
		children[i] = blankValues(c)
	}
	d.Children = children
	return d
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func writeDescriptor(w hashWriter, d domain.Descriptor) {
	writeString(w, d.Tag)
	writeInt(w, len(d.AttrNames))
	for _, a := range d.AttrNames {
		writeString(w, a)
	}
	writeString(w, d.Value)
	writeInt(w, d.ChildCount)
	for _, c := range d.Children {
		writeDescriptor(w, c)
	}
}

func writeString(w hashWriter, s string) {
	writeInt(w, len(s))
	w.Write([]byte(s))
}

func writeInt(w hashWriter, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	w.Write(buf[:])
}

// Similarity weights and the scope-relaxation penalty. Fixed constants,
// exercised by the scenario tests rather than tuned at runtime.
const (
	WeightTags        = 0.45
	WeightAttrs       = 0.35
	WeightCardinality = 0.20

	// ScopePenalty is subtracted once per relaxed scope dimension
	// (airline, version). Document type is never relaxed.
	ScopePenalty = 0.05
)

// Similarity computes the weighted structural similarity of two
// descriptors in [0,1]: Jaccard over the tag multiset, Jaccard over the
// tag-qualified attribute-name set, and a child-cardinality distance.
func Similarity(a, b domain.Descriptor) float64 {
	tags := multisetJaccard(a.TagMultiset(), b.TagMultiset())
	attrs := setJaccard(a.AttrNameSet(), b.AttrNameSet())
	card := cardinalityCloseness(a, b)
	return WeightTags*tags + WeightAttrs*attrs + WeightCardinality*card
}

func multisetJaccard(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, 0
	for tag, ca := range a {
		cb := b[tag]
		inter += min(ca, cb)
		union += max(ca, cb)
	}
	for tag, cb := range b {
		if _, ok := a[tag]; !ok {
			union += cb
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func setJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, len(b)
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// cardinalityCloseness compares per-tag child counts level by level
// using the tag paths of internal nodes.
func cardinalityCloseness(a, b domain.Descriptor) float64 {
	ca := make(map[string]int)
	cb := make(map[string]int)
	collectCardinalities(a, "", ca)
	collectCardinalities(b, "", cb)
	if len(ca) == 0 && len(cb) == 0 {
		return 1
	}
	var total, dist float64
	seen := make(map[string]bool)
	for k, va := range ca {
		vb := cb[k]
		seen[k] = true
		total += float64(max(va, vb))
		dist += float64(abs(va - vb))
	}
	for k, vb := range cb {
		if !seen[k] {
			total += float64(vb)
			dist += float64(vb)
		}
	}
	if total == 0 {
		return 1
	}
	return 1 - dist/total
}

func collectCardinalities(d domain.Descriptor, prefix string, out map[string]int) {
	path := d.Tag
	if prefix != "" {
		path = prefix + domain.PathSeparator + d.Tag
	}
	if d.ChildCount > 0 {
		out[path] += d.ChildCount
	}
	for _, c := range d.Children {
		collectCardinalities(c, path, out)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FieldPaths returns every leaf field path in a subtree, rooted at the
// subtree's tag. Used by diagnostics and tests.
func FieldPaths(node *domain.Node) []string {
	var out []string
	var walk func(n *domain.Node, path string)
	walk = func(n *domain.Node, path string) {
		for _, a := range n.Attrs {
			out = append(out, path+"@"+a.Name)
		}
		if len(n.Children) == 0 && n.Text != "" {
			out = append(out, path)
		}
		for _, c := range n.Children {
			walk(c, path+domain.PathSeparator+c.Tag)
		}
	}
	walk(node, node.Tag)
	return out
}
