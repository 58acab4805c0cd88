// Package summarizer implements the summary generator (spec.md §4.4,
// C4): a 4-field structured synopsis of a full filing, with a
// deterministic fallback when the LLM is unavailable.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/model"
)

// Generator produces a model.Summary for a document.
type Generator struct {
	client llm.Client
}

// New builds a Generator. client may be nil, in which case every call
// falls back to the deterministic vocabulary-scan summary — this is
// the "LLM unavailable" branch of spec.md §4.4 step 3, reachable
// without a configuration error since summarization degrades
// gracefully rather than failing ingestion.
func New(client llm.Client) *Generator {
	return &Generator{client: client}
}

const summaryPromptTemplate = `You are a financial analyst assistant. Read the complete filing below and produce a structured JSON summary with EXACTLY these four keys: "executiveSummary", "financialHighlights", "investmentInsights", "riskFactors". Each value must be a free-form text string. Return JSON only, no surrounding commentary.

[FILING METADATA]
Company: %s
Form Type: %s
Filing Date: %s

[FILING CONTENT]
%s`

// Summarize calls the LLM with the complete document content — no
// truncation, per spec.md §4.4 "No truncation": the design explicitly
// pays the latency cost to preserve fidelity. If the LLM is
// unavailable or its response can't be parsed, Summarize falls back to
// FallbackSummarize.
func (g *Generator) Summarize(ctx context.Context, fullContent string, meta model.DocumentMetadata) (*model.Summary, error) {
	if g.client == nil {
		return FallbackSummarize(fullContent), nil
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, meta.CompanyName, meta.FormType, meta.FilingDate, fullContent)
	raw, err := g.client.Complete(ctx, []llm.Message{
		llm.System("You produce strict JSON matching the requested schema."),
		llm.User(prompt),
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			return FallbackSummarize(fullContent), nil
		}
		return nil, fmt.Errorf("summarizer: llm call: %w", err)
	}

	var parsed map[string]string
	if err := llm.ParseJSON(raw, &parsed); err != nil {
		return FallbackSummarize(fullContent), nil
	}

	return fillMissing(parsed), nil
}

func fillMissing(parsed map[string]string) *model.Summary {
	get := func(key string) string {
		if v, ok := parsed[key]; ok && v != "" {
			return v
		}
		return model.MissingSummaryPlaceholder
	}
	return &model.Summary{
		ExecutiveSummary:    get(model.SummaryFieldExecutive),
		FinancialHighlights: get(model.SummaryFieldFinancial),
		InvestmentInsights:  get(model.SummaryFieldInvestment),
		RiskFactors:         get(model.SummaryFieldRiskFactors),
	}
}

// financialTerms and riskTerms are the small vocabularies the
// deterministic fallback scans for (spec.md §4.4 step 3).
var (
	financialTerms = []string{"revenue", "net income", "earnings", "cash flow", "assets", "debt", "profit", "loss"}
	riskTerms      = []string{"risk", "uncertainty", "challenge", "competition", "regulatory", "litigation"}
)

const maxFallbackTermsPerField = 4

// FallbackSummarize produces a templated summary by scanning content
// (case-insensitive) for a small vocabulary of financial and risk
// terms, mentioning up to four found terms per relevant field. Used
// when the LLM is unavailable or its JSON response fails to parse.
func FallbackSummarize(content string) *model.Summary {
	lower := strings.ToLower(content)
	found := func(vocab []string) []string {
		var hits []string
		for _, term := range vocab {
			if strings.Contains(lower, term) {
				hits = append(hits, term)
				if len(hits) == maxFallbackTermsPerField {
					break
				}
			}
		}
		return hits
	}

	financial := found(financialTerms)
	risk := found(riskTerms)

	financialText := model.MissingSummaryPlaceholder
	if len(financial) > 0 {
		financialText = fmt.Sprintf("Document references financial terms: %s.", strings.Join(financial, ", "))
	}

	riskText := model.MissingSummaryPlaceholder
	if len(risk) > 0 {
		riskText = fmt.Sprintf("Document references risk factors: %s.", strings.Join(risk, ", "))
	}

	executiveText := model.MissingSummaryPlaceholder
	if len(financial) > 0 || len(risk) > 0 {
		executiveText = "Automated summary derived from keyword scan; LLM summarization was unavailable."
	}

	return &model.Summary{
		ExecutiveSummary:    executiveText,
		FinancialHighlights: financialText,
		InvestmentInsights:  model.MissingSummaryPlaceholder,
		RiskFactors:         riskText,
	}
}
