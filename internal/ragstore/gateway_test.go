package ragstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_AddAndSearchRoundTrip(t *testing.T) {
	g := New(NewNopBackend())
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, "Document Metadata:\ncompany: Apple\n\nDocument Content:\nApple reported strong iPhone revenue."))
	require.NoError(t, g.Cognify(ctx))

	results, err := g.Search(ctx, "iphone revenue", ModeNatural)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "iPhone revenue")
}

func TestGateway_SearchIsCached(t *testing.T) {
	backend := NewNopBackend()
	g := New(backend)
	ctx := context.Background()
	require.NoError(t, g.Add(ctx, "Apple revenue grew"))

	first, err := g.Search(ctx, "revenue", ModeNatural)
	require.NoError(t, err)

	require.NoError(t, backend.Prune(ctx))
	// Direct backend prune bypasses the gateway's cache invalidation,
	// so the cached result should still be served.
	second, err := g.Search(ctx, "revenue", ModeNatural)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGateway_ResetAllClearsCache(t *testing.T) {
	g := New(NewNopBackend())
	ctx := context.Background()
	require.NoError(t, g.Add(ctx, "Apple revenue grew"))

	_, err := g.Search(ctx, "revenue", ModeNatural)
	require.NoError(t, err)

	require.NoError(t, g.ResetAll(ctx))

	results, err := g.Search(ctx, "revenue", ModeNatural)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGateway_UnknownModeDefaultsToNatural(t *testing.T) {
	assert.Equal(t, ModeNatural, normalizeMode("nonsense"))
	assert.Equal(t, ModeChunks, normalizeMode(ModeChunks))
}

func TestGateway_SearchByCompanyConcatenatesQuery(t *testing.T) {
	backend := NewNopBackend()
	g := New(backend)
	ctx := context.Background()
	require.NoError(t, g.Add(ctx, "Report on quarterly revenue Apple Inc filed this year"))

	results, err := g.SearchByCompany(ctx, "quarterly revenue", "Apple Inc", ModeNatural)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestProjectToString_PrefersTextOverKeyedOverOpaque(t *testing.T) {
	assert.Equal(t, "direct", ProjectToString(TextResult("direct")))
	assert.Equal(t, "keyed", ProjectToString(KeyedTextResult("keyed")))
	assert.Equal(t, "42", ProjectToString(OpaqueResult(42)))
	assert.Equal(t, "direct", ProjectToString(RawResult{text: "direct", hasText: true, keyedText: "keyed", hasKeyed: true}))
	assert.Equal(t, "keyed", ProjectToString(RawResult{keyedText: "keyed", hasKeyed: true, opaque: 42}))
}

func TestProjectToString_TruncatesOpaqueAt500(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	projected := ProjectToString(OpaqueResult(string(long)))
	assert.Len(t, projected, 503)
	assert.True(t, len(projected) > 500)
}
