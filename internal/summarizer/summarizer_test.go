package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/model"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Complete(_ context.Context, _ []llm.Message) (string, error) {
	return s.response, s.err
}

func TestSummarize_ParsesStructuredJSON(t *testing.T) {
	g := New(&stubLLM{response: "```json\n{\"executiveSummary\":\"good quarter\",\"financialHighlights\":\"revenue up\",\"investmentInsights\":\"buy\",\"riskFactors\":\"competition\"}\n```"})

	summary, err := g.Summarize(context.Background(), "full text", model.DocumentMetadata{CompanyName: "Apple"})
	require.NoError(t, err)
	assert.Equal(t, "good quarter", summary.ExecutiveSummary)
	assert.Equal(t, "revenue up", summary.FinancialHighlights)
}

func TestSummarize_FillsMissingKeysWithPlaceholder(t *testing.T) {
	g := New(&stubLLM{response: `{"executiveSummary":"good quarter"}`})

	summary, err := g.Summarize(context.Background(), "full text", model.DocumentMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "good quarter", summary.ExecutiveSummary)
	assert.Equal(t, model.MissingSummaryPlaceholder, summary.FinancialHighlights)
	assert.Equal(t, model.MissingSummaryPlaceholder, summary.InvestmentInsights)
	assert.Equal(t, model.MissingSummaryPlaceholder, summary.RiskFactors)
}

func TestSummarize_FallsBackWhenLLMUnavailable(t *testing.T) {
	g := New(&stubLLM{err: llm.ErrUnavailable})

	summary, err := g.Summarize(context.Background(), "Revenue grew while litigation risk increased.", model.DocumentMetadata{})
	require.NoError(t, err)
	assert.Contains(t, summary.FinancialHighlights, "revenue")
	assert.Contains(t, summary.RiskFactors, "litigation")
}

func TestSummarize_NilClientUsesFallback(t *testing.T) {
	g := New(nil)

	summary, err := g.Summarize(context.Background(), "net income rose amid regulatory scrutiny", model.DocumentMetadata{})
	require.NoError(t, err)
	assert.Contains(t, summary.FinancialHighlights, "net income")
	assert.Contains(t, summary.RiskFactors, "regulatory")
}

func TestFallbackSummarize_NoTermsFound(t *testing.T) {
	summary := FallbackSummarize("a completely unrelated paragraph about weather")
	assert.Equal(t, model.MissingSummaryPlaceholder, summary.FinancialHighlights)
	assert.Equal(t, model.MissingSummaryPlaceholder, summary.RiskFactors)
}

func TestSummarize_ParseFailureFallsBack(t *testing.T) {
	g := New(&stubLLM{response: "not json at all"})

	summary, err := g.Summarize(context.Background(), "cash flow improved", model.DocumentMetadata{})
	require.NoError(t, err)
	assert.Contains(t, summary.FinancialHighlights, "cash flow")
}
