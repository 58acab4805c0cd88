package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/summarizer"
)

func testMeta() model.DocumentMetadata {
	return model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		CIK:             "320193",
		FilingDate:      "2024-11-01",
	}
}

func TestPipeline_IngestNewDocument(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	rag := ragstore.New(ragstore.NewNopBackend())
	summ := summarizer.New(nil) // nil client -> deterministic fallback

	p := New(reg, rag, summ)

	outcome, err := p.Ingest(context.Background(), "Apple reported strong revenue and profit growth this quarter.", testMeta())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.OK)
	assert.False(t, outcome.Duplicate)
	assert.NotEmpty(t, outcome.Fingerprint)

	entries, err := reg.ListAll(nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].Summary)
}

func TestPipeline_IngestDuplicateReturnsEarly(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	rag := ragstore.New(ragstore.NewNopBackend())
	summ := summarizer.New(nil)
	p := New(reg, rag, summ)

	content := "Apple reported strong revenue growth."
	meta := testMeta()

	first, err := p.Ingest(context.Background(), content, meta)
	require.NoError(t, err)
	assert.True(t, first.OK)

	second, err := p.Ingest(context.Background(), content, meta)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, registry.DuplicateExactFingerprint, second.Reason)
}

// failingBackend always fails Add, so the pipeline must still attach
// the summary and report ok=false rather than erroring out.
type failingBackend struct{}

func (failingBackend) Add(context.Context, string) error       { return errors.New("index unavailable") }
func (failingBackend) Cognify(context.Context) error            { return nil }
func (failingBackend) Search(context.Context, string, ragstore.SearchMode) ([]ragstore.RawResult, error) {
	return nil, nil
}
func (failingBackend) Prune(context.Context) error    { return nil }
func (failingBackend) ResetAll(context.Context) error { return nil }

func TestPipeline_SummaryStillAttachedWhenRAGAddFails(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	rag := ragstore.New(failingBackend{})
	summ := summarizer.New(nil)
	p := New(reg, rag, summ)

	outcome, err := p.Ingest(context.Background(), "Apple reported strong revenue growth.", testMeta())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.OK)
	assert.False(t, outcome.Duplicate)

	entries, err := reg.ListAll(nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].Summary)
}

func TestBuildRAGText_IncludesMetadataHeaderAndContent(t *testing.T) {
	text := buildRAGText("the body", testMeta())
	assert.Contains(t, text, "Document Metadata:")
	assert.Contains(t, text, "companyName: Apple Inc.")
	assert.Contains(t, text, "Document Content:\nthe body")
}
