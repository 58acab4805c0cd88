// Package ingestion implements the ingestion pipeline (spec.md §4.5,
// C5): duplicate check, then a mandatory parallel fan-out of RAG
// indexing and summary generation, then registry persistence.
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/summarizer"
)

// Outcome is the result of one Ingest call.
type Outcome struct {
	OK          bool
	Duplicate   bool
	Reason      registry.DuplicateReason
	Fingerprint string
}

// Pipeline wires the registry, RAG gateway, and summary generator
// together.
type Pipeline struct {
	registry   *registry.Registry
	rag        *ragstore.Gateway
	summarizer *summarizer.Generator
}

// New builds a Pipeline.
func New(reg *registry.Registry, rag *ragstore.Gateway, summ *summarizer.Generator) *Pipeline {
	return &Pipeline{registry: reg, rag: rag, summarizer: summ}
}

// buildRAGText composes the opaque text blob the RAG store indexes:
// a metadata header followed by the raw content. Summaries are never
// injected into the RAG store — they are agent metadata only (spec.md
// §3 "RAG-stored representation").
func buildRAGText(content string, meta model.DocumentMetadata) string {
	var b strings.Builder
	b.WriteString("Document Metadata:\n")
	fmt.Fprintf(&b, "accessionNumber: %s\n", meta.AccessionNumber)
	fmt.Fprintf(&b, "formType: %s\n", meta.FormType)
	fmt.Fprintf(&b, "companyName: %s\n", meta.CompanyName)
	if meta.Ticker != "" {
		fmt.Fprintf(&b, "ticker: %s\n", meta.Ticker)
	}
	fmt.Fprintf(&b, "cik: %s\n", meta.CIK)
	fmt.Fprintf(&b, "filingDate: %s\n", meta.FilingDate)
	if meta.PeriodOfReport != "" {
		fmt.Fprintf(&b, "periodOfReport: %s\n", meta.PeriodOfReport)
	}
	if meta.SourceURL != "" {
		fmt.Fprintf(&b, "sourceURL: %s\n", meta.SourceURL)
	}
	b.WriteString("\nDocument Content:\n")
	b.WriteString(content)
	return b.String()
}

// Ingest runs the full pipeline: duplicate check, parallel
// add-to-RAG‖summarize fan-out, then registry persistence (spec.md
// §4.5 steps 1-5).
func (p *Pipeline) Ingest(ctx context.Context, content string, meta model.DocumentMetadata) (*Outcome, error) {
	result, err := p.registry.InsertIfNew(content, meta)
	if err != nil {
		return nil, fmt.Errorf("ingestion: duplicate check: %w", err)
	}
	if result.Duplicate {
		return &Outcome{Duplicate: true, Reason: result.Reason, Fingerprint: result.Fingerprint}, nil
	}

	ragText := buildRAGText(content, meta)

	var (
		ragAddOK bool
		summary  *model.Summary
	)

	g, gctx := errgroup.WithContext(ctx)

	// RAG indexing and summary generation MUST run concurrently (spec.md
	// §4.5 step 3): indexing is heavy and the summary call is
	// latency-dominated by the LLM, so running them side by side hides
	// the smaller latency behind the larger.
	g.Go(func() error {
		if err := p.rag.Add(gctx, ragText); err != nil {
			return nil // recorded via ragAddOK staying false; not a pipeline failure
		}
		ragAddOK = true
		return nil
	})
	g.Go(func() error {
		s, err := p.summarizer.Summarize(gctx, content, meta)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}
		summary = s
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion: parallel fan-out: %w", err)
	}

	if ragAddOK {
		if err := p.rag.Cognify(ctx); err != nil {
			ragAddOK = false
		}
	}

	if err := p.registry.AttachSummary(result.Fingerprint, summary); err != nil {
		return nil, fmt.Errorf("ingestion: attach summary: %w", err)
	}

	return &Outcome{OK: ragAddOK, Fingerprint: result.Fingerprint}, nil
}
