// Package mask replaces sensitive leaf values in a canonical subtree
// with stable role-based placeholders before any hashing or
// persistence. The field classifier is an injected capability; masking
// behaviour variants are data (the Role enum), not subtypes.
package mask

import (
	"fmt"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Role classifies a field for masking purposes.
type Role string

const (
	// RolePlain fields pass through unchanged.
	RolePlain Role = "plain"

	// RoleSensitive fields are replaced with a role-keyed placeholder
	// derived only from the role key, never from the original value.
	RoleSensitive Role = "sensitive"

	// RoleExpectedReference fields are cross-references whose
	// cardinality and ordering carry meaning; they are preserved as-is
	// unless also classified sensitive elsewhere.
	RoleExpectedReference Role = "expected-reference"
)

// Classification is the classifier's verdict for one field path.
type Classification struct {
	Role Role

	// Key names the sensitive role (e.g. "pax-name"). Two different
	// real values under the same key mask to the identical placeholder,
	// which is what keeps signatures stable.
	Key string
}

// Classifier maps a slash-separated field path (elements, with a
// trailing @attr for attributes) to a classification. Supplied by the
// external masking-policy collaborator.
type Classifier func(fieldPath string) (Classification, error)

// Placeholder returns the deterministic placeholder for a role key.
// It depends only on the key, never on the original value.
func Placeholder(key string) string {
	if key == "" {
		key = "unknown"
	}
	return "[MASKED:" + key + "]"
}

// Masker applies a classifier to canonical subtrees.
type Masker struct {
	classify Classifier

	// bestEffort controls classifier failure handling. When true, a
	// failing field is masked with the safe default placeholder and the
	// walk continues. When false the whole instance must be rejected:
	// masking failure never silently passes through unmasked data.
	bestEffort bool
}

// New creates a Masker. A nil classifier treats every field as plain.
func New(classify Classifier, bestEffort bool) *Masker {
	return &Masker{classify: classify, bestEffort: bestEffort}
}

// Apply masks the subtree in place. basePath is the slash-separated
// path of the subtree root within the document, used as the prefix for
// classifier lookups. On classifier failure without best-effort
// configured, the tree is left partially masked and
// domain.ErrMaskingFailed is returned; callers must reject the
// instance.
func (m *Masker) Apply(node *domain.Node, basePath string) error {
	if m == nil || m.classify == nil || node == nil {
		return nil
	}
	return m.walk(node, basePath)
}

func (m *Masker) walk(node *domain.Node, path string) error {
	for i := range node.Attrs {
		attrPath := path + "@" + node.Attrs[i].Name
		masked, err := m.maskValue(attrPath, node.Attrs[i].Value)
		if err != nil {
			return err
		}
		node.Attrs[i].Value = masked
	}

	if node.Text != "" && len(node.Children) == 0 {
		masked, err := m.maskValue(path, node.Text)
		if err != nil {
			return err
		}
		node.Text = masked
	}

	for _, child := range node.Children {
		if err := m.walk(child, path+domain.PathSeparator+child.Tag); err != nil {
			return err
		}
	}
	return nil
}

// maskValue classifies one leaf value and returns its masked form.
// Classifier panics are contained the same way as errors.
func (m *Masker) maskValue(fieldPath, value string) (masked string, err error) {
	defer func() {
		if r := recover(); r != nil {
			masked, err = m.fail(fieldPath, fmt.Errorf("classifier panic: %v", r))
		}
	}()

	c, cerr := m.classify(fieldPath)
	if cerr != nil {
		return m.fail(fieldPath, cerr)
	}

	switch c.Role {
	case RoleSensitive:
		return Placeholder(c.Key), nil
	case RoleExpectedReference, RolePlain:
		return value, nil
	default:
		return m.fail(fieldPath, fmt.Errorf("unknown role %q", c.Role))
	}
}

func (m *Masker) fail(fieldPath string, cause error) (string, error) {
	if m.bestEffort {
		logger.Warn("classifier failed for %s, masking with safe default: %v", fieldPath, cause)
		return Placeholder(""), nil
	}
	return "", fmt.Errorf("classifying %s: %w", fieldPath, domain.ErrMaskingFailed)
}
