package extract

import (
	"sort"
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// DefaultByteBudget caps the serialized size of one extracted subtree.
const DefaultByteBudget = 256 * 1024

// subtreeBuilder materializes one matched subtree in canonical form:
// attributes ordered lexicographically by name, whitespace-only text
// dropped. It enforces a serialized byte budget; once exceeded it stops
// buffering content but keeps tracking depth so the matching close
// event is still found, and the partial structure built so far is
// forwarded with truncated=true.
type subtreeBuilder struct {
	budget    int
	size      int
	truncated bool
	root      *domain.Node
	stack     []*domain.Node
	depth     int
}

func newSubtreeBuilder(budget int) *subtreeBuilder {
	if budget <= 0 {
		budget = DefaultByteBudget
	}
	return &subtreeBuilder{budget: budget}
}

// start opens a child element. Returns without recording anything when
// the budget is already blown; depth bookkeeping continues regardless.
func (b *subtreeBuilder) start(tag string, attrs []domain.Attr) {
	b.depth++
	if b.truncated {
		return
	}

	cost := len(tag)*2 + 5
	for _, a := range attrs {
		cost += len(a.Name) + len(a.Value) + 4
	}
	if b.size+cost > b.budget {
		b.truncated = true
		// The subtree root is always recorded so a truncated instance
		// still carries a best-effort shell.
		if b.root != nil {
			return
		}
	}
	b.size += cost

	node := &domain.Node{Tag: tag, Attrs: attrs}
	sort.Slice(node.Attrs, func(i, j int) bool { return node.Attrs[i].Name < node.Attrs[j].Name })

	if b.root == nil {
		b.root = node
	} else {
		parent := b.stack[len(b.stack)-1]
		parent.Children = append(parent.Children, node)
	}
	b.stack = append(b.stack, node)
}

// text appends character data to the currently open element.
// Whitespace-only text is dropped; other text is trimmed.
func (b *subtreeBuilder) text(s string) {
	if b.truncated || len(b.stack) == 0 {
		return
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return
	}
	if b.size+len(trimmed) > b.budget {
		b.truncated = true
		return
	}
	b.size += len(trimmed)
	node := b.stack[len(b.stack)-1]
	node.Text += trimmed
}

// end closes the innermost open element and reports whether the
// subtree's root element just closed.
func (b *subtreeBuilder) end() bool {
	b.depth--
	// The stack lags behind depth once truncation kicked in; only pop
	// when the closing element was actually recorded.
	if len(b.stack) > b.depth {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return b.depth == 0
}

// result returns the canonical subtree, its serialized byte size, and
// the truncation flag. The root is nil when even the opening element
// exceeded the budget.
func (b *subtreeBuilder) result() (*domain.Node, int, bool) {
	if b.root == nil {
		return nil, 0, b.truncated
	}
	serialized := b.root.Serialize()
	return b.root, len(serialized), b.truncated
}
