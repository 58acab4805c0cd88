package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analyst/internal/grader"
	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/summarizer"
)

// fakeLLM dispatches a canned response by matching a unique marker
// string present in each prompt template (controller/prompts.go),
// rather than a call-order queue, since grader and controller prompts
// interleave once RETRIEVE starts.
type fakeLLM struct {
	mu          sync.Mutex
	calls       int
	evalScore   int
	queries     []string
	alwaysValidRAG bool
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "[CANDIDATE ANSWER]"):
		if f.alwaysValidRAG {
			return `{"validationPassed": true, "reasoning": "good", "confidenceScore": 0.9}`, nil
		}
		return `{"validationPassed": false, "reasoning": "thin", "confidenceScore": 0.2}`, nil
	case strings.Contains(prompt, "[CURRENT ANALYSIS]"):
		return fmt.Sprintf(`{"overallAssessment":"ok","completenessScore":%d,"specificQuestions":[],"missingAreas":[],"dataNeeds":[],"methodologyConcerns":[],"actionability":"act","nextSteps":[],"isAnalysisComplete":false}`, f.evalScore), nil
	case strings.Contains(prompt, "[EVALUATION]"):
		b := `[`
		for i, q := range f.queries {
			if i > 0 {
				b += ","
			}
			b += fmt.Sprintf(`"%s"`, q)
		}
		b += `]`
		return b, nil
	case strings.Contains(prompt, "[NEW EVIDENCE FROM TARGETED RETRIEVAL]"):
		return `{"executiveSummary":"refined","financialAnalysis":"fa","investmentOpportunities":"io","riskAssessment":"ra","marketPosition":"mp","valuationInsights":"vi","recommendation":"buy","confidenceLevel":"high","dataGaps":[]}`, nil
	default:
		return `{"executiveSummary":"draft","financialAnalysis":"fa","investmentOpportunities":"io","riskAssessment":"ra","marketPosition":"mp","valuationInsights":"vi","recommendation":"hold","confidenceLevel":"medium","dataGaps":["more data"]}`, nil
	}
}

type fakeUpdater struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (u *fakeUpdater) Persist(_ context.Context, s Snapshot) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.snapshots = append(u.snapshots, s)
	return nil
}

func seededRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	summ := summarizer.New(nil)
	s, err := summ.Summarize(context.Background(), "Apple reported strong revenue and profit this quarter.", model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		CIK:             "320193",
		FilingDate:      "2024-11-01",
	})
	require.NoError(t, err)
	res, err := reg.InsertIfNew("Apple reported strong revenue and profit this quarter.", model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		CIK:             "320193",
		FilingDate:      "2024-11-01",
	})
	require.NoError(t, err)
	require.NoError(t, reg.AttachSummary(res.Fingerprint, s))
	return reg
}

func TestRun_EarlyTerminationOnFirstEvaluation(t *testing.T) {
	reg := seededRegistry(t)
	fl := &fakeLLM{evalScore: 9}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := New(fl, rag, reg, g, nil)

	updater := &fakeUpdater{}
	result := c.Run(context.Background(), "Analyze Apple Inc's investment potential based on recent filings", "", nil, updater)

	require.False(t, result.Failed)
	require.False(t, result.Cancelled)
	assert.Equal(t, 1, result.TotalIterations)
	assert.Equal(t, 0, result.RAGQueriesExecuted)
	require.Len(t, result.IterationHistory, 2)
	assert.Equal(t, model.IterationInitialAnalysis, result.IterationHistory[0].Type)
	assert.Equal(t, model.IterationEvaluation, result.IterationHistory[1].Type)
}

func TestRun_CapHitAfterTenIterations(t *testing.T) {
	reg := seededRegistry(t)
	fl := &fakeLLM{evalScore: 4, queries: []string{"q1", "q2", "q3"}}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := New(fl, rag, reg, g, nil)

	result := c.Run(context.Background(), "Analyze Apple Inc's long-term growth prospects", "", nil, nil)

	require.False(t, result.Failed)
	require.False(t, result.Cancelled)
	assert.Equal(t, maxIterations, result.TotalIterations)
	assert.Equal(t, 4, result.FinalCompletenessScore)
	assert.Equal(t, maxIterations*3, result.RAGQueriesExecuted)
}

func TestRun_CancellationMidLoopPreservesPartials(t *testing.T) {
	reg := seededRegistry(t)
	fl := &fakeLLM{evalScore: 4, queries: []string{"q1", "q2"}}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := New(fl, rag, reg, g, nil)

	var checkpoints int
	var mu sync.Mutex
	cancelSignal := func() bool {
		mu.Lock()
		defer mu.Unlock()
		checkpoints++
		// false for the pre-DRAFT and pre-EVALUATE checks, true from
		// the post-evaluation checkpoint onward.
		return checkpoints > 2
	}

	result := c.Run(context.Background(), "Analyze Apple Inc's investment potential", "", cancelSignal, nil)

	require.True(t, result.Cancelled)
	assert.True(t, strings.HasPrefix(result.TerminationReason, "User cancelled"))
	require.NotNil(t, result.FinalAnalysis)
	assert.Equal(t, "draft", result.FinalAnalysis.ExecutiveSummary)
	require.Len(t, result.IterationHistory, 2)
	assert.True(t, result.Failed == false)
}

func TestRun_NoDocumentsFails(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	fl := &fakeLLM{evalScore: 9}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := New(fl, rag, reg, g, nil)

	result := c.Run(context.Background(), "Analyze a company with no filings on record", "", nil, nil)

	require.True(t, result.Failed)
	assert.Equal(t, "No documents available for analysis", result.ErrorMessage)
}

func TestRun_CompanyFilterNarrowsDocuments(t *testing.T) {
	reg := seededRegistry(t)
	fl := &fakeLLM{evalScore: 9}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := New(fl, rag, reg, g, nil)

	result := c.Run(context.Background(), "Analyze Microsoft's investment potential", "Microsoft", nil, nil)
	assert.True(t, result.Failed)
}
