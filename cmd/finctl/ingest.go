package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsight/analyst/internal/filings"
	"github.com/finsight/analyst/internal/ingestion"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/summarizer"
)

var ingestLimit int

var ingestCmd = &cobra.Command{
	Use:   "ingest <query>",
	Short: "Search EDGAR and ingest matching filings into the registry and RAG store",
	Long: `Searches SEC EDGAR full-text search for query, fetches each hit's
content, and runs it through the ingestion pipeline (duplicate check,
RAG indexing, and summary generation).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 10, "maximum number of filings to fetch")
}

func runIngest(cmd *cobra.Command, args []string) error {
	query := args[0]

	adapter := filings.New(filings.Config{UserAgent: cfg.EdgarUserAgent, Logger: logger})
	pipeline := ingestion.New(reg, rag, summarizer.New(llmClient))

	ctx := cmd.Context()
	hits := adapter.SearchFilings(ctx, query, ingestLimit)
	if len(hits) == 0 {
		fmt.Println("no filings matched")
		return nil
	}

	var ingested, duplicates, failed int
	for _, hit := range hits {
		content, ok := adapter.FetchContent(ctx, hit.AccessionNumber, hit.CIK)
		if !ok {
			failed++
			fmt.Printf("skip %s: could not fetch content\n", hit.AccessionNumber)
			continue
		}

		meta := model.DocumentMetadata{
			AccessionNumber: hit.AccessionNumber,
			FormType:        hit.Form,
			CompanyName:     hit.CompanyName,
			Ticker:          hit.Ticker,
			CIK:             hit.CIK,
			FilingDate:      hit.FilingDate,
			PeriodOfReport:  hit.PeriodOfReport,
			SourceURL:       hit.URL,
		}
		outcome, err := pipeline.Ingest(ctx, content.Content, meta)
		if err != nil {
			failed++
			fmt.Printf("skip %s: %s\n", hit.AccessionNumber, err)
			continue
		}
		if outcome.Duplicate {
			duplicates++
			fmt.Printf("duplicate %s: %s\n", hit.AccessionNumber, outcome.Reason)
			continue
		}
		ingested++
		fmt.Printf("ingested %s (%s)\n", hit.AccessionNumber, outcome.Fingerprint)
	}

	fmt.Printf("ingested=%d duplicates=%d failed=%d\n", ingested, duplicates, failed)
	if failed > 0 && ingested > 0 {
		closeRuntime()
		os.Exit(exitPartial)
	}
	return nil
}
