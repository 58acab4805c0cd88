package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analyst/internal/controller"
	"github.com/finsight/analyst/internal/grader"
	"github.com/finsight/analyst/internal/jobstore"
	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/summarizer"
)

// fakeLLM is a minimal stand-in mirroring controller_test.go's fixture:
// score 9 on the very first evaluation so the job terminates in one
// cycle without a RETRIEVE round.
type fakeLLM struct{}

func (fakeLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "[CANDIDATE ANSWER]"):
		return `{"validationPassed": true, "reasoning": "ok", "confidenceScore": 0.9}`, nil
	case strings.Contains(prompt, "[CURRENT ANALYSIS]"):
		return `{"overallAssessment":"ok","completenessScore":9,"specificQuestions":[],"missingAreas":[],"dataNeeds":[],"methodologyConcerns":[],"actionability":"act","nextSteps":[],"isAnalysisComplete":false}`, nil
	default:
		return `{"executiveSummary":"draft","financialAnalysis":"fa","investmentOpportunities":"io","riskAssessment":"ra","marketPosition":"mp","valuationInsights":"vi","recommendation":"hold","confidenceLevel":"medium","dataGaps":["more data"]}`, nil
	}
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	store, err := jobstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(registry.NewMemoryStore(), slog.Default())
	summ := summarizer.New(nil)
	s, err := summ.Summarize(context.Background(), "Apple reported strong revenue this quarter.", model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		CIK:             "320193",
		FilingDate:      "2024-11-01",
	})
	require.NoError(t, err)
	res, err := reg.InsertIfNew("Apple reported strong revenue this quarter.", model.DocumentMetadata{
		AccessionNumber: "0000320193-24-000123",
		FormType:        "10-K",
		CompanyName:     "Apple Inc.",
		CIK:             "320193",
		FilingDate:      "2024-11-01",
	})
	require.NoError(t, err)
	require.NoError(t, reg.AttachSummary(res.Fingerprint, s))

	fl := fakeLLM{}
	g := grader.New(fl, nil)
	rag := ragstore.New(ragstore.NewNopBackend())
	c := controller.New(fl, rag, reg, g, nil)

	return New(store, c, 2, slog.Default())
}

func waitForTerminal(t *testing.T, s *Scheduler, id int64) *model.AnalysisJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Status(context.Background(), id)
		require.NoError(t, err)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func TestScheduler_CreateRunsToCompletion(t *testing.T) {
	s := newTestScheduler(t)
	job, err := s.Create(context.Background(), "Analyze Apple Inc's investment potential based on recent filings", "")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusInProgress, job.Status)

	final := waitForTerminal(t, s, job.ID)
	assert.Equal(t, model.JobStatusCompleted, final.Status)
	assert.Equal(t, 1, final.TotalIterations)
	assert.Equal(t, 0, final.RAGQueriesExecuted)

	results, err := s.Results(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, results.FinalAnalysis)
}

func TestScheduler_ResultsNotReadyWhileInProgress(t *testing.T) {
	s := newTestScheduler(t)
	store, err := jobstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	job, err := store.Create(context.Background(), "Analyze a thing", "")
	require.NoError(t, err)

	s2 := &Scheduler{store: store, controller: s.controller, limiter: s.limiter, logger: slog.Default()}
	_, err = s2.Results(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrResultsNotReady)
}

func TestScheduler_DeleteForbiddenWhileRunning(t *testing.T) {
	s := newTestScheduler(t)
	job, err := s.Create(context.Background(), "Analyze Apple Inc's investment potential based on recent filings", "")
	require.NoError(t, err)

	// A row created straight in the store has no worker, so it stays
	// IN_PROGRESS and Delete must refuse it.
	running, err := s.store.Create(context.Background(), "Analyze a thing", "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete(context.Background(), running.ID), jobstore.ErrJobRunning)

	// Once the spawned job finishes, Delete succeeds.
	final := waitForTerminal(t, s, job.ID)
	require.NoError(t, s.Delete(context.Background(), final.ID))

	_, err = s.Status(context.Background(), final.ID)
	require.Error(t, err)
}

func TestScheduler_BulkDeleteEmptyList(t *testing.T) {
	s := newTestScheduler(t)
	_, _, err := s.BulkDelete(context.Background(), nil)
	assert.ErrorIs(t, err, jobstore.ErrEmptyIDs)
}
