package extract

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Match is one extraction event: a matched subtree in canonical form,
// or a rejected occurrence that must still be reported.
type Match struct {
	// TargetID is the target path that matched.
	TargetID string

	// Seq is the stable per-run sequence number, assigned at match
	// time in stream order.
	Seq int

	// Node is the canonical subtree. Nil when rejected before any
	// structure was recorded.
	Node *domain.Node

	// ByteSize is the serialized size of Node.
	ByteSize int

	// Truncated is set when the subtree exceeded the byte budget.
	Truncated bool

	// Rejected marks occurrences that must never feed the pattern
	// library.
	Rejected bool

	// RejectCause explains a rejection.
	RejectCause domain.RejectReason
}

// StreamMatcher walks a forward-only XML stream against a path trie
// and emits one Match per configured-target occurrence. The stream is
// parsed strictly sequentially; depth tracking requires event order.
type StreamMatcher struct {
	trie   *Trie
	budget int
}

// NewStreamMatcher builds a matcher over a prepared trie. budget <= 0
// selects DefaultByteBudget.
func NewStreamMatcher(trie *Trie, budget int) *StreamMatcher {
	if budget <= 0 {
		budget = DefaultByteBudget
	}
	return &StreamMatcher{trie: trie, budget: budget}
}

// openExtraction is one in-flight subtree capture. Nested targets each
// get their own capture; they are independent.
type openExtraction struct {
	targetID string
	seq      int
	builder  *subtreeBuilder
}

// Run consumes the stream and calls emit for every match, in stream
// order. emit returning false stops the run. Once ctx is cancelled no
// new match events are issued, but captures already open are completed
// so partial results stay valid. Elements still open at end of stream
// are implicitly closed and reported as rejected rather than dropped.
func (m *StreamMatcher) Run(ctx context.Context, r io.Reader, emit func(Match) bool) error {
	dec := xml.NewDecoder(r)

	cursors := []cursor{m.trie.rootCursor()}
	var open []*openExtraction
	seq := 0
	cancelled := false

	flush := func(ext *openExtraction) bool {
		node, size, truncated := ext.builder.result()
		return emit(Match{
			TargetID:  ext.targetID,
			Seq:       ext.seq,
			Node:      node,
			ByteSize:  size,
			Truncated: truncated,
		})
	}

	reject := func(cause domain.RejectReason) bool {
		for _, ext := range open {
			node, size, _ := ext.builder.result()
			if !emit(Match{
				TargetID:    ext.targetID,
				Seq:         ext.seq,
				Node:        node,
				ByteSize:    size,
				Truncated:   true,
				Rejected:    true,
				RejectCause: cause,
			}) {
				return false
			}
		}
		open = nil
		return true
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			// Implicit close for anything still open: defensive
			// truncation, reported, never silently dropped.
			if len(open) > 0 {
				logger.Warn("stream ended with %d element(s) open", len(open))
				reject(domain.RejectTruncatedStream)
			}
			return nil
		}
		if err != nil {
			// The decoder cannot resync after a syntax error; contain
			// the damage to the open captures and end the stream.
			logger.Warn("xml parse error: %v", err)
			var syntax *xml.SyntaxError
			isSyntax := errors.As(err, &syntax)
			cause := domain.RejectParseError
			if isSyntax && strings.Contains(syntax.Msg, "unexpected EOF") {
				cause = domain.RejectTruncatedStream
			}
			reject(cause)
			if isSyntax {
				return nil
			}
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			cur := cursors[len(cursors)-1].descend(t.Name.Space, t.Name.Local)
			cursors = append(cursors, cur)

			if !cancelled {
				select {
				case <-ctx.Done():
					cancelled = true
					logger.Info("cancellation observed; no new matches will be issued")
				default:
				}
			}
			if !cancelled {
				for _, targetID := range cur.terminals() {
					open = append(open, &openExtraction{
						targetID: targetID,
						seq:      seq,
						builder:  newSubtreeBuilder(m.budget),
					})
					seq++
				}
			}

			attrs := make([]domain.Attr, 0, len(t.Attr))
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				attrs = append(attrs, domain.Attr{Name: a.Name.Local, Value: a.Value})
			}
			tag := t.Name.Local
			for _, ext := range open {
				ext.builder.start(tag, append([]domain.Attr(nil), attrs...))
			}

		case xml.CharData:
			for _, ext := range open {
				ext.builder.text(string(t))
			}

		case xml.EndElement:
			if len(cursors) > 1 {
				cursors = cursors[:len(cursors)-1]
			}
			remaining := open[:0]
			for _, ext := range open {
				if ext.builder.end() {
					if !flush(ext) {
						return nil
					}
					continue
				}
				remaining = append(remaining, ext)
			}
			open = remaining

		default:
			// Comments, directives and processing instructions carry no
			// structure.
		}

		// A cancelled run with nothing left in flight can stop reading.
		if cancelled && len(open) == 0 {
			return domain.ErrRunCancelled
		}
	}
}
