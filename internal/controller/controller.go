// Package controller implements the iterative analysis controller
// (spec.md §4.7, C7): the critique-and-refine state machine that
// schedules DRAFT / EVALUATE / RETRIEVE / REFINE phases over an LLM
// and a RAG-backed grader, enforcing the termination bound and
// persisting partial state after every phase.
package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finsight/analyst/internal/grader"
	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
)

// maxIterations is the hard evaluation cap (spec.md §4.7, §9 Open
// Question 3 — fixed at 10 regardless of any historical variable
// bound).
const maxIterations = 10

// completenessThreshold is the score at or above which EVALUATE's
// verdict alone ends the loop (spec.md §4.7 termination tests).
const completenessThreshold = 7

// retrieveConcurrency bounds how many queries RETRIEVE answers at once
// (spec.md §5 "MUST fan out in ... RETRIEVE").
const retrieveConcurrency = 4

// CancelSignal is polled at every safe point spec.md §4.7 names:
// before DRAFT, before EVALUATE, inside the RETRIEVE per-query loop,
// and before REFINE.
type CancelSignal func() bool

// ProgressUpdater is the jobUpdater contract spec.md §4.7 calls for:
// the controller invokes Persist after every phase with the full
// current snapshot so polling clients see monotonic, incremental
// progress (spec.md §5 "Updates MUST be incremental").
type ProgressUpdater interface {
	Persist(ctx context.Context, snapshot Snapshot) error
}

// Snapshot is everything a phase boundary can change.
type Snapshot struct {
	TotalIterations        int
	RAGQueriesExecuted      int
	FinalCompletenessScore int
	IterationHistory       []model.IterationRecord
	FinalAnalysis          *model.Analysis
}

// Result is the controller's final outcome. Failed distinguishes a
// genuine phase error (spec.md §4.7 "Failure semantics": no documents
// available, or DRAFT never producing an analysis at all) from a
// graceful termination-test stop, which always reports success with
// whatever was accumulated (spec.md §8 scenario S3: cap hit still
// COMPLETEs).
type Result struct {
	FinalAnalysis          *model.Analysis
	IterationHistory       []model.IterationRecord
	TotalIterations        int
	DocumentsAnalyzed      int
	RAGQueriesExecuted      int
	FinalCompletenessScore int
	Cancelled              bool
	Failed                 bool
	ErrorMessage           string
	TerminationReason      string
}

// Controller ties the core LLM, the RAG gateway, the document
// registry, and the grader together into the DRAFT/EVALUATE/RETRIEVE/
// REFINE loop.
type Controller struct {
	llmClient llm.Client
	rag       *ragstore.Gateway
	registry  *registry.Registry
	grader    *grader.Grader
	logger    *slog.Logger
}

// New builds a Controller.
func New(llmClient llm.Client, rag *ragstore.Gateway, reg *registry.Registry, g *grader.Grader, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{llmClient: llmClient, rag: rag, registry: reg, grader: g, logger: logger}
}

// runState accumulates the snapshot fields across phases, persisted to
// updater after every phase.
type runState struct {
	history     []model.IterationRecord
	totalEvals  int
	ragQueries  int
	finalScore  int
	current     *model.Analysis
}

func (s *runState) snapshot() Snapshot {
	return Snapshot{
		TotalIterations:        s.totalEvals,
		RAGQueriesExecuted:      s.ragQueries,
		FinalCompletenessScore: s.finalScore,
		IterationHistory:       s.history,
		FinalAnalysis:          s.current,
	}
}

func (c *Controller) persist(ctx context.Context, updater ProgressUpdater, s *runState) {
	if updater == nil {
		return
	}
	if err := updater.Persist(ctx, s.snapshot()); err != nil {
		c.logger.Warn("controller: persist progress failed", slog.String("err", err.Error()))
	}
}

// Run executes the full critique-and-refine loop for query, optionally
// scoped to companyFilter (spec.md §4.7 "Operation").
func (c *Controller) Run(ctx context.Context, query, companyFilter string, cancelSignal CancelSignal, updater ProgressUpdater) *Result {
	cancelled := func() bool { return cancelSignal != nil && cancelSignal() }

	entries, err := c.registry.ListAll(&registry.Filter{CompanyFilter: companyFilter})
	if err != nil {
		return &Result{Failed: true, ErrorMessage: "failed to read document registry: " + err.Error()}
	}
	if len(entries) == 0 {
		return &Result{Failed: true, ErrorMessage: "No documents available for analysis"}
	}

	documentsAnalyzed := len(entries)
	docSummaries := formatDocumentSummaries(entries)
	state := &runState{}

	if cancelled() {
		return c.cancelledResult(state, documentsAnalyzed, "User cancelled analysis before it started")
	}

	draft, ok := c.draft(ctx, query, docSummaries)
	if !ok {
		return &Result{Failed: true, ErrorMessage: "Initial analysis could not be produced", DocumentsAnalyzed: documentsAnalyzed}
	}
	state.current = draft
	state.history = append(state.history, model.IterationRecord{
		Iteration: 1,
		Type:      model.IterationInitialAnalysis,
		Timestamp: time.Now(),
		Payload:   map[string]any{"analysis": draft},
	})
	c.persist(ctx, updater, state)

	terminationReason := ""
	for cycle := 1; ; cycle++ {
		if cycle > maxIterations {
			terminationReason = "Maximum iteration cap reached"
			break
		}
		if cancelled() {
			return c.cancelledResult(state, documentsAnalyzed, "User cancelled analysis before evaluation")
		}

		evaluation, ok := c.evaluate(ctx, query, state.current)
		if !ok {
			terminationReason = "Evaluation response could not be parsed"
			break
		}
		state.totalEvals = cycle
		state.finalScore = evaluation.CompletenessScore
		state.history = append(state.history, model.IterationRecord{
			Iteration: cycle,
			Type:      model.IterationEvaluation,
			Timestamp: time.Now(),
			Payload:   map[string]any{"evaluation": evaluation},
		})
		c.persist(ctx, updater, state)

		if evaluation.IsAnalysisComplete || evaluation.CompletenessScore >= completenessThreshold {
			terminationReason = "Analysis reached the completeness threshold"
			break
		}
		if cancelled() {
			return c.cancelledResult(state, documentsAnalyzed, "User cancelled analysis after evaluation")
		}

		queries, ok := c.generateQueries(ctx, evaluation, docSummaries)
		if !ok || len(queries) == 0 {
			terminationReason = "Retrieval produced no further queries"
			break
		}

		batch := c.retrieve(ctx, queries, cancelSignal)
		state.ragQueries += len(batch.Queries)
		state.history = append(state.history, model.IterationRecord{
			Iteration: cycle,
			Type:      model.IterationRAGQueries,
			Timestamp: time.Now(),
			Payload:   map[string]any{"queries": batch.Queries, "results": batch.Results},
		})
		c.persist(ctx, updater, state)

		if cancelled() {
			return c.cancelledResult(state, documentsAnalyzed, "User cancelled analysis before refinement")
		}

		refined, ok := c.refine(ctx, state.current, batch)
		if !ok {
			terminationReason = "Refinement response could not be parsed; retaining prior analysis"
			break
		}
		state.current = refined
		state.history = append(state.history, model.IterationRecord{
			Iteration: cycle,
			Type:      model.IterationRefinedAnalysis,
			Timestamp: time.Now(),
			Payload:   map[string]any{"analysis": refined},
		})
		c.persist(ctx, updater, state)
	}

	return &Result{
		FinalAnalysis:          state.current,
		IterationHistory:       state.history,
		TotalIterations:        state.totalEvals,
		DocumentsAnalyzed:      documentsAnalyzed,
		RAGQueriesExecuted:      state.ragQueries,
		FinalCompletenessScore: state.finalScore,
		TerminationReason:      terminationReason,
	}
}

func (c *Controller) cancelledResult(state *runState, documentsAnalyzed int, reason string) *Result {
	return &Result{
		FinalAnalysis:          state.current,
		IterationHistory:       state.history,
		TotalIterations:        state.totalEvals,
		DocumentsAnalyzed:      documentsAnalyzed,
		RAGQueriesExecuted:      state.ragQueries,
		FinalCompletenessScore: state.finalScore,
		Cancelled:              true,
		TerminationReason:      reason,
	}
}

const structuredJSONSystemPrompt = "You produce strict JSON matching the requested schema, with no surrounding commentary."

func (c *Controller) complete(ctx context.Context, prompt string) (string, bool) {
	raw, err := c.llmClient.Complete(ctx, []llm.Message{
		llm.System(structuredJSONSystemPrompt),
		llm.User(prompt),
	})
	if err != nil {
		return "", false
	}
	return raw, true
}

func (c *Controller) draft(ctx context.Context, query, docSummaries string) (*model.Analysis, bool) {
	raw, ok := c.complete(ctx, draftPrompt(query, docSummaries))
	if !ok {
		return nil, false
	}
	var analysis model.Analysis
	if err := llm.ParseJSON(raw, &analysis); err != nil {
		return nil, false
	}
	return &analysis, true
}

func (c *Controller) evaluate(ctx context.Context, query string, analysis *model.Analysis) (*model.Evaluation, bool) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, false
	}
	raw, ok := c.complete(ctx, evaluatePrompt(query, string(analysisJSON)))
	if !ok {
		return nil, false
	}
	var eval model.Evaluation
	if err := llm.ParseJSON(raw, &eval); err != nil {
		return nil, false
	}
	return &eval, true
}

func (c *Controller) generateQueries(ctx context.Context, evaluation *model.Evaluation, docSummaries string) ([]string, bool) {
	evaluationJSON, err := json.Marshal(evaluation)
	if err != nil {
		return nil, false
	}
	raw, ok := c.complete(ctx, retrieveQueriesPrompt(string(evaluationJSON), docSummaries))
	if !ok {
		return nil, false
	}
	var queries []string
	if err := llm.ParseJSON(raw, &queries); err != nil {
		return nil, false
	}
	return queries, true
}

func (c *Controller) refine(ctx context.Context, original *model.Analysis, batch model.RAGQueryBatch) (*model.Analysis, bool) {
	originalJSON, err := json.Marshal(original)
	if err != nil {
		return nil, false
	}
	raw, ok := c.complete(ctx, refinePrompt(string(originalJSON), formatRAGResults(batch)))
	if !ok {
		return nil, false
	}
	var refined model.Analysis
	if err := llm.ParseJSON(raw, &refined); err != nil {
		return nil, false
	}
	return &refined, true
}

// retrieve fans out one grader call per query, bounded by
// retrieveConcurrency (spec.md §5), stopping early — without discarding
// results already in flight — the moment cancelSignal reports true
// (spec.md §4.7 "Cancellation": "inside the RETRIEVE per-query loop so
// a long retrieve batch stops early").
func (c *Controller) retrieve(ctx context.Context, queries []string, cancelSignal CancelSignal) model.RAGQueryBatch {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retrieveConcurrency)

	var (
		mu       sync.Mutex
		executed []string
		results  []model.RAGQueryResult
	)

	for _, q := range queries {
		if cancelSignal != nil && cancelSignal() {
			break
		}
		query := q
		mu.Lock()
		executed = append(executed, query)
		mu.Unlock()

		g.Go(func() error {
			result := c.answerQuery(gctx, query)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return model.RAGQueryBatch{Queries: executed, Results: results}
}

// answerQuery runs one RETRIEVE query through the RAG gateway and the
// grader (spec.md §4.7 step 4: "the inner RAG call is
// C3.search(query, 'graph'/'completion')"). A RAG search failure
// degrades to an empty candidate set rather than aborting the query —
// the grader itself never blocks progress (spec.md §4.6).
func (c *Controller) answerQuery(ctx context.Context, query string) model.RAGQueryResult {
	ragAnswers, err := c.rag.Search(ctx, query, ragstore.ModeGraph)
	if err != nil {
		ragAnswers = nil
	}

	answer, _ := c.grader.Answer(ctx, query, ragAnswers)

	return model.RAGQueryResult{
		Query:        query,
		RAGAnswers:   ragAnswers,
		Source:       string(answer.Source),
		FinalAnswers: answer.FinalAnswers,
		Validation: map[string]any{
			"validationPassed": answer.Validation.ValidationPassed,
			"reasoning":        answer.Validation.Reasoning,
			"confidenceScore":  answer.Validation.ConfidenceScore,
		},
	}
}
