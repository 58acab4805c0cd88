package controller

import (
	"fmt"
	"strings"

	"github.com/finsight/analyst/internal/model"
)

// formatDocumentSummaries renders the registry entries DRAFT and
// RETRIEVE share as prompt input (spec.md §4.7 "Document-summary
// formatting"): both phases must see the same shape so the LLM's
// mental model of "what documents exist" stays stable across the loop.
func formatDocumentSummaries(entries []*model.RegistryEntry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "Document %d: %s - %s (%s)\n", i+1, e.Metadata.CompanyName, e.Metadata.FormType, e.Metadata.FilingDate)
		if e.Summary != nil {
			fmt.Fprintf(&b, "  Executive Summary: %s\n", e.Summary.ExecutiveSummary)
			fmt.Fprintf(&b, "  Financial Highlights: %s\n", e.Summary.FinancialHighlights)
			fmt.Fprintf(&b, "  Investment Insights: %s\n", e.Summary.InvestmentInsights)
			fmt.Fprintf(&b, "  Risk Factors: %s\n", e.Summary.RiskFactors)
		}
		fmt.Fprintf(&b, "  Content Length: %d\n\n", e.ContentLength)
	}
	return b.String()
}

// formatRAGResults renders one RETRIEVE batch's per-query results as
// REFINE's evidence input (spec.md §4.7 "RAG-results formatting"): for
// each query, its query text followed by the first three result
// strings, newline-joined.
func formatRAGResults(batch model.RAGQueryBatch) string {
	var b strings.Builder
	for i, result := range batch.Results {
		fmt.Fprintf(&b, "RAG Query %d: %s\n", i+1, result.Query)
		answers := result.FinalAnswers
		if len(answers) > 3 {
			answers = answers[:3]
		}
		b.WriteString(strings.Join(answers, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}
