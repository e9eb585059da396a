package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

const orderViewSample = `<OrderViewRS>
  <Response>
    <DataLists>
      <PaxList>
        <Pax PaxID="P1"><GivenName>ALICE</GivenName><PTC>ADT</PTC></Pax>
        <Pax PaxID="P2"><GivenName>BOB</GivenName><PTC>CHD</PTC></Pax>
      </PaxList>
    </DataLists>
  </Response>
</OrderViewRS>`

func buildTestTrie(t *testing.T, paths ...domain.TargetPath) *Trie {
	t.Helper()
	trie, err := BuildTrie("17.2", paths, NewAliasResolver(nil))
	require.NoError(t, err)
	return trie
}

func collectMatches(t *testing.T, m *StreamMatcher, doc string) []Match {
	t.Helper()
	var matches []Match
	err := m.Run(context.Background(), strings.NewReader(doc), func(match Match) bool {
		matches = append(matches, match)
		return true
	})
	require.NoError(t, err)
	return matches
}

func TestStreamMatcher_RepeatedSiblings(t *testing.T) {
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-pax", Path: "OrderViewRS/Response/DataLists/PaxList/Pax", Enabled: true,
	})
	matches := collectMatches(t, NewStreamMatcher(trie, 0), orderViewSample)

	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Seq)
	assert.Equal(t, 1, matches[1].Seq)
	assert.Equal(t, `<Pax PaxID="P1"><GivenName>ALICE</GivenName><PTC>ADT</PTC></Pax>`, matches[0].Node.Serialize())
	assert.Equal(t, `<Pax PaxID="P2"><GivenName>BOB</GivenName><PTC>CHD</PTC></Pax>`, matches[1].Node.Serialize())
}

func TestStreamMatcher_NestedTargetsAreIndependent(t *testing.T) {
	trie := buildTestTrie(t,
		domain.TargetPath{ID: "tp-list", Path: "OrderViewRS/Response/DataLists/PaxList", Enabled: true},
		domain.TargetPath{ID: "tp-pax", Path: "OrderViewRS/Response/DataLists/PaxList/Pax", Enabled: true},
	)
	matches := collectMatches(t, NewStreamMatcher(trie, 0), orderViewSample)

	require.Len(t, matches, 3)

	// Matches flush at close time: inner elements close before the
	// enclosing list. Sequence numbers reflect open order.
	assert.Equal(t, "tp-pax", matches[0].TargetID)
	assert.Equal(t, 1, matches[0].Seq)
	assert.Equal(t, "tp-pax", matches[1].TargetID)
	assert.Equal(t, 2, matches[1].Seq)
	assert.Equal(t, "tp-list", matches[2].TargetID)
	assert.Equal(t, 0, matches[2].Seq)

	// The list capture contains both Pax children.
	require.NotNil(t, matches[2].Node)
	assert.Len(t, matches[2].Node.Children, 2)
}

func TestStreamMatcher_DefaultNamespace(t *testing.T) {
	doc := `<OrderViewRS xmlns="http://www.iata.org/IATA/EDIST"><Response><DataLists><PaxList><Pax PaxID="P1"/></PaxList></DataLists></Response></OrderViewRS>`
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-pax", Path: "OrderViewRS/Response/DataLists/PaxList/Pax", Enabled: true,
	})
	matches := collectMatches(t, NewStreamMatcher(trie, 0), doc)

	require.Len(t, matches, 1)
	assert.Equal(t, `<Pax PaxID="P1"/>`, matches[0].Node.Serialize())
}

func TestStreamMatcher_ByteBudgetTruncates(t *testing.T) {
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-list", Path: "OrderViewRS/Response/DataLists/PaxList", Enabled: true,
	})
	matches := collectMatches(t, NewStreamMatcher(trie, 24), orderViewSample)

	require.Len(t, matches, 1)
	assert.True(t, matches[0].Truncated)
	require.NotNil(t, matches[0].Node)
	assert.Equal(t, "PaxList", matches[0].Node.Tag)
}

func TestStreamMatcher_TruncatedStreamRejectsOpenCaptures(t *testing.T) {
	doc := `<OrderViewRS><Response><DataLists><PaxList><Pax PaxID="P1">`
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-list", Path: "OrderViewRS/Response/DataLists/PaxList", Enabled: true,
	})

	var matches []Match
	err := NewStreamMatcher(trie, 0).Run(context.Background(), strings.NewReader(doc), func(m Match) bool {
		matches = append(matches, m)
		return true
	})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.True(t, matches[0].Rejected)
	assert.Equal(t, domain.RejectTruncatedStream, matches[0].RejectCause)
}

func TestStreamMatcher_MalformedCloseRejectsOpenCaptures(t *testing.T) {
	doc := `<OrderViewRS><Response><DataLists><PaxList><Pax></Wrong></PaxList></DataLists></Response></OrderViewRS>`
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-list", Path: "OrderViewRS/Response/DataLists/PaxList", Enabled: true,
	})

	var matches []Match
	err := NewStreamMatcher(trie, 0).Run(context.Background(), strings.NewReader(doc), func(m Match) bool {
		matches = append(matches, m)
		return true
	})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.True(t, matches[0].Rejected)
	assert.Equal(t, domain.RejectParseError, matches[0].RejectCause)
}

func TestStreamMatcher_CancellationStopsNewMatches(t *testing.T) {
	doc := `<R><P>1</P><P>2</P><P>3</P></R>`
	trie := buildTestTrie(t, domain.TargetPath{ID: "tp-p", Path: "R/P", Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	var matches []Match
	err := NewStreamMatcher(trie, 0).Run(ctx, strings.NewReader(doc), func(m Match) bool {
		matches = append(matches, m)
		cancel()
		return true
	})
	assert.ErrorIs(t, err, domain.ErrRunCancelled)

	// The first capture completes; no new matches start after cancel.
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Rejected)
	assert.Equal(t, "<P>1</P>", matches[0].Node.Serialize())
}

func TestStreamMatcher_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trie := buildTestTrie(t, domain.TargetPath{ID: "tp-p", Path: "R/P", Enabled: true})
	err := NewStreamMatcher(trie, 0).Run(ctx, strings.NewReader(`<R><P/></R>`), func(Match) bool {
		t.Fatal("no match expected after cancellation")
		return false
	})
	assert.ErrorIs(t, err, domain.ErrRunCancelled)
}

func TestStreamMatcher_EmitStopsRun(t *testing.T) {
	trie := buildTestTrie(t, domain.TargetPath{
		ID: "tp-pax", Path: "OrderViewRS/Response/DataLists/PaxList/Pax", Enabled: true,
	})

	seen := 0
	err := NewStreamMatcher(trie, 0).Run(context.Background(), strings.NewReader(orderViewSample), func(Match) bool {
		seen++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}
