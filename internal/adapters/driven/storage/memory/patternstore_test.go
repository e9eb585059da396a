package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
)

func testPattern(id, documentType, hash string) *domain.Pattern {
	return &domain.Pattern{
		ID:           id,
		DocumentType: documentType,
		Signature:    domain.PatternSignature{Hash: hash, Descriptor: domain.Descriptor{Tag: "PaxList"}},
		Airlines:     []string{"AA"},
		Versions:     []string{"17.2"},
		ExampleCount: 1,
	}
}

func TestPatternStore_InsertAndGet(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	p := testPattern("p-1", "OrderViewRS", "hash-1")
	require.NoError(t, store.Insert(ctx, p))
	assert.Equal(t, 1, p.StoreVersion)

	got, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "OrderViewRS", got.DocumentType)
	assert.Equal(t, []string{"AA"}, got.Airlines)

	assert.ErrorIs(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")), domain.ErrAlreadyExists)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPatternStore_FindByHash(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")))
	require.NoError(t, store.Insert(ctx, testPattern("p-2", "OrderViewRS", "hash-2")))
	require.NoError(t, store.Insert(ctx, testPattern("p-3", "AirShoppingRS", "hash-1")))

	found, err := store.FindByHash(ctx, "OrderViewRS", "hash-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p-1", found[0].ID)

	// Superseded patterns stay findable by hash.
	require.NoError(t, store.MarkSuperseded(ctx, "p-1", "p-2"))
	found, err = store.FindByHash(ctx, "OrderViewRS", "hash-1")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestPatternStore_FindCandidatesByType_ExcludesSuperseded(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")))
	require.NoError(t, store.Insert(ctx, testPattern("p-2", "OrderViewRS", "hash-2")))
	require.NoError(t, store.MarkSuperseded(ctx, "p-2", "p-1"))

	candidates, err := store.FindCandidatesByType(ctx, "OrderViewRS")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "p-1", candidates[0].ID)
}

func TestPatternStore_UpdateScope_OptimisticConcurrency(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	p := testPattern("p-1", "OrderViewRS", "hash-1")
	require.NoError(t, store.Insert(ctx, p))

	// Two readers load the same version; the slower writer loses.
	first, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "p-1")
	require.NoError(t, err)

	first.ObserveScope(domain.Scope{Airline: "BA", Version: "17.2"})
	require.NoError(t, store.UpdateScope(ctx, first))
	assert.Equal(t, 2, first.StoreVersion)

	second.ObserveScope(domain.Scope{Airline: "CA", Version: "17.2"})
	assert.ErrorIs(t, store.UpdateScope(ctx, second), domain.ErrLibraryConflict)

	got, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "BA"}, got.Airlines)

	assert.ErrorIs(t, store.UpdateScope(ctx, testPattern("missing", "OrderViewRS", "h")), domain.ErrNotFound)
}

func TestPatternStore_MarkSuperseded_Idempotent(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")))
	require.NoError(t, store.Insert(ctx, testPattern("p-2", "OrderViewRS", "hash-2")))

	require.NoError(t, store.MarkSuperseded(ctx, "p-1", "p-2"))
	before, err := store.Get(ctx, "p-1")
	require.NoError(t, err)

	require.NoError(t, store.MarkSuperseded(ctx, "p-1", "p-2"))
	after, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, before.StoreVersion, after.StoreVersion)

	assert.ErrorIs(t, store.MarkSuperseded(ctx, "missing", "p-2"), domain.ErrNotFound)
}

func TestPatternStore_List(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPattern("p-2", "OrderViewRS", "hash-2")))
	require.NoError(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")))
	require.NoError(t, store.Insert(ctx, testPattern("p-3", "AirShoppingRS", "hash-3")))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p-1", all[0].ID)

	typed, err := store.List(ctx, "OrderViewRS")
	require.NoError(t, err)
	assert.Len(t, typed, 2)
}

func TestPatternStore_GetReturnsCopy(t *testing.T) {
	store := NewPatternStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPattern("p-1", "OrderViewRS", "hash-1")))

	got, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	got.Airlines[0] = "mutated"

	fresh, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AA"}, fresh.Airlines)
}
