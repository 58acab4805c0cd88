package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analyst/internal/model"
)

func testMeta() model.DocumentMetadata {
	return model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		Ticker:          "AAPL",
		CIK:             "0000320193",
		FilingDate:      "2024-11-01",
	}
}

func TestInsertIfNew_FirstInsertSucceeds(t *testing.T) {
	r := New(NewMemoryStore(), nil)

	res, err := r.InsertIfNew("full filing text", testMeta())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.Duplicate)
	assert.NotEmpty(t, res.Fingerprint)
}

func TestInsertIfNew_ExactDuplicateRejected(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	meta := testMeta()

	first, err := r.InsertIfNew("same content", meta)
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := r.InsertIfNew("same content", meta)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, DuplicateExactFingerprint, second.Reason)

	entries, err := r.ListAll(nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInsertIfNew_SimilarTripleRejectedEvenWithDifferentContent(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	meta := testMeta()

	_, err := r.InsertIfNew("original text", meta)
	require.NoError(t, err)

	res, err := r.InsertIfNew("materially different text body", meta)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, DuplicateSimilarTriple, res.Reason)
}

func TestInsertIfNew_ForcedUniqueAccessionBypassesDuplicate(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	meta := testMeta()

	_, err := r.InsertIfNew("content", meta)
	require.NoError(t, err)

	meta2 := meta
	meta2.AccessionNumber = meta.AccessionNumber + "-amended"
	meta2.FilingDate = "2024-11-02"
	res, err := r.InsertIfNew("content", meta2)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestListAll_CompanyFilterMatchesSubstringEitherDirection(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	_, err := r.InsertIfNew("content", testMeta())
	require.NoError(t, err)

	byShortName, err := r.ListAll(&Filter{CompanyFilter: "Apple"})
	require.NoError(t, err)
	assert.Len(t, byShortName, 1)

	byLongerName, err := r.ListAll(&Filter{CompanyFilter: "Apple Inc. (NASDAQ)"})
	require.NoError(t, err)
	assert.Len(t, byLongerName, 1)

	byUnrelated, err := r.ListAll(&Filter{CompanyFilter: "Microsoft"})
	require.NoError(t, err)
	assert.Len(t, byUnrelated, 0)
}

func TestAttachSummary(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	res, err := r.InsertIfNew("content", testMeta())
	require.NoError(t, err)

	summary := &model.Summary{ExecutiveSummary: "strong quarter"}
	require.NoError(t, r.AttachSummary(res.Fingerprint, summary))

	entries, err := r.ListAll(nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "strong quarter", entries[0].Summary.ExecutiveSummary)
	assert.NotNil(t, entries[0].SummaryGeneratedAt)
}

func TestStats(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	_, err := r.InsertIfNew("content", testMeta())
	require.NoError(t, err)

	other := testMeta()
	other.AccessionNumber = "0000320193-24-000200"
	other.CompanyName = "Microsoft Corp"
	other.FormType = "10-Q"
	other.FilingDate = "2024-12-01"
	_, err = r.InsertIfNew("other content", other)
	require.NoError(t, err)

	stats, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.ElementsMatch(t, []string{"Apple Inc.", "Microsoft Corp"}, stats.Companies)
	assert.Equal(t, 1, stats.FormTypes["10-K"])
	assert.Equal(t, "2024-11-01", stats.EarliestFiling)
	assert.Equal(t, "2024-12-01", stats.LatestFiling)
}

func TestResetAll(t *testing.T) {
	r := New(NewMemoryStore(), nil)
	_, err := r.InsertIfNew("content", testMeta())
	require.NoError(t, err)

	require.NoError(t, r.ResetAll())

	entries, err := r.ListAll(nil)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}
