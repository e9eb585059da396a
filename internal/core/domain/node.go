package domain

import (
	"sort"
	"strings"
	"time"
)

// Attr is a single attribute on a canonical node. Attribute order
// within a node is canonical (lexicographic by name), fixed at
// extraction time.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a canonicalized subtree: attributes sorted by
// name, whitespace-only text dropped. It is the shared currency between
// the extractor, the masking pass, and the signature generator.
type Node struct {
	// Tag is the namespace-qualified element name.
	Tag string

	// Attrs are the element's attributes in lexicographic name order.
	Attrs []Attr

	// Text is the element's character data with surrounding whitespace
	// trimmed. Empty for pure container elements.
	Text string

	// Children are the child elements in document order.
	Children []*Node
}

// SortAttrs restores the canonical lexicographic attribute order after
// in-place edits.
func (n *Node) SortAttrs() {
	sort.Slice(n.Attrs, func(i, j int) bool { return n.Attrs[i].Name < n.Attrs[j].Name })
}

// Serialize renders the canonical XML form of the subtree. The output
// is stable for a given tree: attribute order is already canonical and
// no incidental whitespace is emitted.
func (n *Node) Serialize() string {
	var b strings.Builder
	n.serialize(&b)
	return b.String()
}

func (n *Node) serialize(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeXML(a.Value))
		b.WriteByte('"')
	}
	if n.Text == "" && len(n.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	b.WriteString(escapeXML(n.Text))
	for _, c := range n.Children {
		c.serialize(b)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// RejectReason explains why a node instance was rejected.
type RejectReason string

const (
	// RejectNone marks an accepted instance.
	RejectNone RejectReason = ""

	// RejectTruncatedStream marks an element left open at end of
	// stream, implicitly closed by the matcher.
	RejectTruncatedStream RejectReason = "truncated stream"

	// RejectParseError marks a malformed fragment isolated to the
	// current open element.
	RejectParseError RejectReason = "parse error"

	// RejectMaskingFailed marks a classifier failure without
	// best-effort masking configured.
	RejectMaskingFailed RejectReason = "masking failed"
)

// Scope identifies the airline and version under which an instance was
// observed. Document type is carried separately because it is the
// mandatory scope key and never relaxed.
type Scope struct {
	Airline string
	Version string
}

// NodeInstance is one extracted occurrence of a target path from a
// specific document. Created once per match during an extraction run;
// immutable after creation.
type NodeInstance struct {
	// ID is the unique identifier for the instance.
	ID string

	// RunID identifies the extraction run that produced this instance.
	RunID string

	// DocumentID identifies the source document.
	DocumentID string

	// TargetPathID links to the TargetPath that matched.
	TargetPathID string

	// DocumentType is copied from the target path; it always equals the
	// document type of any pattern this instance matches.
	DocumentType string

	// Scope is the airline/version the instance was observed under.
	Scope Scope

	// Seq is the stable per-run sequence number assigned at match time.
	// Reporting sorts by Seq so results are deterministic even though
	// scoring completes out of order.
	Seq int

	// Subtree is the canonicalized, masked subtree. Nil for instances
	// rejected before extraction completed.
	Subtree *Node

	// Canonical is the serialized form of Subtree.
	Canonical string

	// ByteSize is the serialized size in bytes at extraction time.
	ByteSize int

	// Truncated is set when the subtree exceeded the size budget and
	// buffering stopped mid-extraction.
	Truncated bool

	// Rejected marks instances that must never create or update a
	// pattern.
	Rejected bool

	// RejectCause explains a rejection.
	RejectCause RejectReason

	// CreatedAt is when the instance was extracted.
	CreatedAt time.Time
}
