package model

import "time"

// JobStatus is one state in an analysis job's lifecycle. A job never
// transitions out of a terminal status (spec.md §3 invariant 2).
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether status can never transition further.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IterationType tags one record in a job's IterationHistory.
type IterationType string

const (
	IterationInitialAnalysis IterationType = "initialAnalysis"
	IterationEvaluation      IterationType = "evaluation"
	IterationRAGQueries      IterationType = "ragQueries"
	IterationRefinedAnalysis IterationType = "refinedAnalysis"
)

// IterationRecord is one append-only entry in a job's history. Payload
// holds the type-specific body (an Analysis, an Evaluation, or a
// RAGQueryBatch) as a generic map so the history can be serialized
// uniformly regardless of record type.
type IterationRecord struct {
	Iteration int             `json:"iteration"`
	Type      IterationType   `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   map[string]any  `json:"payload"`
}

// Analysis is the structured investment analysis produced by DRAFT and
// REFINE (spec.md §4.7, step 1 and step 5). The schema is shared
// between both phases so REFINE can preserve keys while integrating
// new evidence.
type Analysis struct {
	ExecutiveSummary        string   `json:"executiveSummary"`
	FinancialAnalysis       string   `json:"financialAnalysis"`
	InvestmentOpportunities string   `json:"investmentOpportunities"`
	RiskAssessment          string   `json:"riskAssessment"`
	MarketPosition          string   `json:"marketPosition"`
	ValuationInsights       string   `json:"valuationInsights"`
	Recommendation          any      `json:"recommendation"`
	ConfidenceLevel         string   `json:"confidenceLevel"`
	DataGaps                []string `json:"dataGaps"`
}

// Evaluation is the structured grade produced by EVALUATE (spec.md
// §4.7 step 2).
type Evaluation struct {
	OverallAssessment    string   `json:"overallAssessment"`
	CompletenessScore    int      `json:"completenessScore"`
	SpecificQuestions    []string `json:"specificQuestions"`
	MissingAreas         []string `json:"missingAreas"`
	DataNeeds            []string `json:"dataNeeds"`
	MethodologyConcerns  []string `json:"methodologyConcerns"`
	Actionability        string   `json:"actionability"`
	NextSteps            []string `json:"nextSteps"`
	IsAnalysisComplete   bool     `json:"isAnalysisComplete"`
}

// RAGQueryResult is one retrieval query's outcome inside a ragQueries
// iteration record: the raw RAG answer, the grader's verdict, and the
// chosen final answer (spec.md §4.7 step 4).
type RAGQueryResult struct {
	Query         string         `json:"query"`
	RAGAnswers    []string       `json:"ragAnswers"`
	Source        string         `json:"source"`
	FinalAnswers  []string       `json:"finalAnswers"`
	Validation    map[string]any `json:"validation"`
}

// RAGQueryBatch is the payload of one ragQueries iteration record.
type RAGQueryBatch struct {
	Queries []string         `json:"queries"`
	Results []RAGQueryResult `json:"results"`
}

// AnalysisJob is the persisted, mutable state of one controller run
// (spec.md §3). It is created by the job scheduler (C8), mutated only
// by the controller and the cancel endpoint, and deleted only while
// not IN_PROGRESS.
type AnalysisJob struct {
	ID                     int64             `json:"id"`
	Query                  string            `json:"query"`
	CompanyFilter          string            `json:"companyFilter,omitempty"`
	Status                 JobStatus         `json:"status"`
	ErrorMessage           string            `json:"errorMessage,omitempty"`
	CancelRequested        bool              `json:"cancelRequested"`
	TotalIterations        int               `json:"totalIterations"`
	DocumentsAnalyzed      int               `json:"documentsAnalyzed"`
	RAGQueriesExecuted     int               `json:"ragQueriesExecuted"`
	FinalCompletenessScore int               `json:"finalCompletenessScore"`
	FinalAnalysis          *Analysis         `json:"finalAnalysis,omitempty"`
	IterationHistory       []IterationRecord `json:"iterationHistory"`
	TerminationReason      string            `json:"terminationReason,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
	CompletedAt            *time.Time        `json:"completedAt,omitempty"`
}

// LatestIterationAnalysis scans IterationHistory in reverse for the
// most recent initialAnalysis or refinedAnalysis record and returns
// its analysis payload (spec.md §4.8 latestIterationAnalysis).
func (j *AnalysisJob) LatestIterationAnalysis() *Analysis {
	for i := len(j.IterationHistory) - 1; i >= 0; i-- {
		rec := j.IterationHistory[i]
		if rec.Type != IterationInitialAnalysis && rec.Type != IterationRefinedAnalysis {
			continue
		}
		raw, ok := rec.Payload["analysis"]
		if !ok {
			continue
		}
		a, ok := raw.(*Analysis)
		if ok {
			return a
		}
	}
	return nil
}

// HasPartialResults reports whether a terminal-non-success job has
// anything worth showing a client (spec.md §4.8, §8 invariant 7).
func (j *AnalysisJob) HasPartialResults() bool {
	if j.Status != JobStatusFailed && j.Status != JobStatusCancelled {
		return false
	}
	if j.FinalAnalysis != nil {
		return true
	}
	if j.LatestIterationAnalysis() != nil {
		return true
	}
	return len(j.IterationHistory) > 0
}

// FinalRecommendation projects the Recommendation field of the final
// analysis to a display string. Recommendation may be a bare string or
// a {decision, rationale} object (original_source's Django model
// handled both shapes; see SPEC_FULL.md "Supplemented features" §1).
func (a *Analysis) FinalRecommendation() string {
	if a == nil {
		return "Analysis incomplete"
	}
	switch rec := a.Recommendation.(type) {
	case string:
		if rec == "" {
			return "No recommendation available"
		}
		return rec
	case map[string]any:
		decision, _ := rec["decision"].(string)
		rationale, _ := rec["rationale"].(string)
		switch {
		case decision != "" && rationale != "":
			return decision + " - " + rationale
		case decision != "":
			return decision
		case rationale != "":
			return rationale
		default:
			return "No recommendation available"
		}
	default:
		return "No recommendation available"
	}
}
