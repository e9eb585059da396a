package mask

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

func paxNode() *domain.Node {
	return &domain.Node{
		Tag:   "Pax",
		Attrs: []domain.Attr{{Name: "PaxID", Value: "P1"}},
		Children: []*domain.Node{
			{Tag: "GivenName", Text: "ALICE"},
			{Tag: "PTC", Text: "ADT"},
		},
	}
}

func TestMasker_Apply_SensitiveLeaf(t *testing.T) {
	classify := RuleClassifier([]Rule{
		{Suffix: "Pax/GivenName", Role: RoleSensitive, Key: "pax-name"},
	})

	node := paxNode()
	err := New(classify, false).Apply(node, "Pax")
	require.NoError(t, err)

	assert.Equal(t, "[MASKED:pax-name]", node.Children[0].Text)
	// Unclassified fields pass through.
	assert.Equal(t, "ADT", node.Children[1].Text)
	assert.Equal(t, "P1", node.Attrs[0].Value)
}

func TestMasker_Apply_PlaceholderIsValueIndependent(t *testing.T) {
	classify := RuleClassifier([]Rule{
		{Suffix: "GivenName", Role: RoleSensitive, Key: "pax-name"},
	})

	a := &domain.Node{Tag: "GivenName", Text: "ALICE"}
	b := &domain.Node{Tag: "GivenName", Text: "BOB"}
	require.NoError(t, New(classify, false).Apply(a, "GivenName"))
	require.NoError(t, New(classify, false).Apply(b, "GivenName"))

	// Same role key, same placeholder: signatures stay stable.
	assert.Equal(t, a.Text, b.Text)
	assert.Equal(t, "[MASKED:pax-name]", a.Text)
}

func TestMasker_Apply_AttributePath(t *testing.T) {
	classify := RuleClassifier([]Rule{
		{Suffix: "@PaxID", Role: RoleSensitive, Key: "pax-id"},
	})

	node := paxNode()
	require.NoError(t, New(classify, false).Apply(node, "Pax"))
	assert.Equal(t, "[MASKED:pax-id]", node.Attrs[0].Value)
}

func TestMasker_Apply_ExpectedReferencePreserved(t *testing.T) {
	classify := RuleClassifier([]Rule{
		{Suffix: "@PaxRefID", Role: RoleExpectedReference},
	})

	node := &domain.Node{Tag: "Seat", Attrs: []domain.Attr{{Name: "PaxRefID", Value: "PAX1"}}}
	require.NoError(t, New(classify, false).Apply(node, "Seat"))
	assert.Equal(t, "PAX1", node.Attrs[0].Value)
}

func TestMasker_Apply_ClassifierErrorRejects(t *testing.T) {
	classify := func(fieldPath string) (Classification, error) {
		return Classification{}, fmt.Errorf("policy store down")
	}

	err := New(classify, false).Apply(paxNode(), "Pax")
	assert.ErrorIs(t, err, domain.ErrMaskingFailed)
}

func TestMasker_Apply_BestEffortUsesSafeDefault(t *testing.T) {
	classify := func(fieldPath string) (Classification, error) {
		if fieldPath == "Pax/GivenName" {
			return Classification{}, errors.New("policy store down")
		}
		return Classification{Role: RolePlain}, nil
	}

	node := paxNode()
	require.NoError(t, New(classify, true).Apply(node, "Pax"))
	assert.Equal(t, "[MASKED:unknown]", node.Children[0].Text)
	assert.Equal(t, "ADT", node.Children[1].Text)
}

func TestMasker_Apply_ClassifierPanicContained(t *testing.T) {
	classify := func(fieldPath string) (Classification, error) {
		panic("boom")
	}

	err := New(classify, false).Apply(paxNode(), "Pax")
	assert.ErrorIs(t, err, domain.ErrMaskingFailed)

	node := paxNode()
	require.NoError(t, New(classify, true).Apply(node, "Pax"))
	assert.Equal(t, "[MASKED:unknown]", node.Children[0].Text)
}

func TestMasker_Apply_NilClassifierIsPlain(t *testing.T) {
	node := paxNode()
	require.NoError(t, New(nil, false).Apply(node, "Pax"))
	assert.Equal(t, "ALICE", node.Children[0].Text)
}

func TestRuleClassifier_FirstMatchWins(t *testing.T) {
	classify := RuleClassifier([]Rule{
		{Suffix: "GivenName", Role: RoleSensitive, Key: "first"},
		{Suffix: "Pax/GivenName", Role: RoleSensitive, Key: "second"},
	})

	c, err := classify("PaxList/Pax/GivenName")
	require.NoError(t, err)
	assert.Equal(t, "first", c.Key)
}

func TestRuleClassifier_DefaultPlain(t *testing.T) {
	classify := RuleClassifier(nil)
	c, err := classify("anything")
	require.NoError(t, err)
	assert.Equal(t, RolePlain, c.Role)
}
