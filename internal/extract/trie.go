package extract

import (
	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

// trieNode is one path segment in the matcher trie. A node is terminal
// when it carries at least one target path ID.
type trieNode struct {
	children  map[string]*trieNode
	targetIDs []string
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// Trie indexes the alias-expanded literal paths for one extraction run.
// Built once per run; read-only afterwards, so it is safe to share
// across goroutines.
type Trie struct {
	root *trieNode
	size int
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode()}
}

// BuildTrie expands every enabled target path through the alias
// resolver and inserts all literal candidates. Returns
// domain.ErrNoTargetPaths when nothing is insertable for the version:
// that is a configuration failure which aborts the run early.
func BuildTrie(version string, paths []domain.TargetPath, resolver *AliasResolver) (*Trie, error) {
	t := NewTrie()
	for _, tp := range paths {
		if !tp.Enabled || tp.Path == "" {
			continue
		}
		for _, literal := range resolver.Resolve(version, tp.Path) {
			t.Insert(domain.SplitPath(literal), tp.ID)
		}
	}
	if t.size == 0 {
		return nil, domain.ErrNoTargetPaths
	}
	return t, nil
}

// Insert adds one literal path owned by the given target. Duplicate
// (path, target) insertions are idempotent.
func (t *Trie) Insert(segments []string, targetID string) {
	if len(segments) == 0 {
		return
	}
	node := t.root
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			child = newTrieNode()
			node.children[seg] = child
		}
		node = child
	}
	for _, id := range node.targetIDs {
		if id == targetID {
			return
		}
	}
	node.targetIDs = append(node.targetIDs, targetID)
	t.size++
}

// cursor tracks the set of trie positions alive at one document depth.
// Multiple positions can coexist when literal paths share prefixes.
type cursor struct {
	nodes []*trieNode
}

// rootCursor is the matcher's position before any element is entered.
func (t *Trie) rootCursor() cursor {
	return cursor{nodes: []*trieNode{t.root}}
}

// descend advances every live position along the edge for the element
// name. Matching is exact and case-sensitive; a namespaced element
// matches an edge written either as its local name or as
// "space:local". The returned cursor is empty when no position
// advanced, which keeps per-event work at O(depth).
func (c cursor) descend(space, local string) cursor {
	var next []*trieNode
	qualified := ""
	if space != "" {
		qualified = space + ":" + local
	}
	for _, n := range c.nodes {
		if child, ok := n.children[local]; ok {
			next = append(next, child)
		}
		if qualified != "" {
			if child, ok := n.children[qualified]; ok {
				next = append(next, child)
			}
		}
	}
	return cursor{nodes: next}
}

// terminals returns the target IDs configured at the current position.
// Each occurrence of a repeated sibling element produces its own call,
// so every occurrence is evaluated independently.
func (c cursor) terminals() []string {
	var ids []string
	for _, n := range c.nodes {
		ids = append(ids, n.targetIDs...)
	}
	return ids
}
