package jobstore

import (
	"encoding/json"
	"time"

	"github.com/finsight/analyst/internal/model"
)

// analysisJobRecord is the GORM model backing the analysis-jobs table
// (spec.md §3, §6 "Persisted state"). FinalAnalysis and IterationHistory
// are stored as JSON text: IterationRecord.Payload is a heterogeneous
// map whose shape depends on Type, which does not map cleanly onto
// relational columns.
type analysisJobRecord struct {
	ID                     int64 `gorm:"primaryKey;autoIncrement"`
	Query                  string
	CompanyFilter          string
	Status                 string `gorm:"index"`
	ErrorMessage           string
	CancelRequested        bool
	TotalIterations        int
	DocumentsAnalyzed      int
	RAGQueriesExecuted     int
	FinalCompletenessScore int
	FinalAnalysisJSON      string `gorm:"column:final_analysis_json;type:text"`
	IterationHistoryJSON   string `gorm:"column:iteration_history_json;type:text"`
	TerminationReason      string
	CreatedAt              time.Time
	CompletedAt            *time.Time
}

func (analysisJobRecord) TableName() string { return "analysis_jobs" }

func toRecord(j *model.AnalysisJob) (*analysisJobRecord, error) {
	finalAnalysisJSON, err := marshalOrEmpty(j.FinalAnalysis)
	if err != nil {
		return nil, err
	}
	historyJSON, err := marshalOrEmpty(j.IterationHistory)
	if err != nil {
		return nil, err
	}
	return &analysisJobRecord{
		ID:                     j.ID,
		Query:                  j.Query,
		CompanyFilter:          j.CompanyFilter,
		Status:                 string(j.Status),
		ErrorMessage:           j.ErrorMessage,
		CancelRequested:        j.CancelRequested,
		TotalIterations:        j.TotalIterations,
		DocumentsAnalyzed:      j.DocumentsAnalyzed,
		RAGQueriesExecuted:     j.RAGQueriesExecuted,
		FinalCompletenessScore: j.FinalCompletenessScore,
		FinalAnalysisJSON:      finalAnalysisJSON,
		IterationHistoryJSON:   historyJSON,
		TerminationReason:      j.TerminationReason,
		CreatedAt:              j.CreatedAt,
		CompletedAt:            j.CompletedAt,
	}, nil
}

func fromRecord(r *analysisJobRecord) (*model.AnalysisJob, error) {
	job := &model.AnalysisJob{
		ID:                     r.ID,
		Query:                  r.Query,
		CompanyFilter:          r.CompanyFilter,
		Status:                 model.JobStatus(r.Status),
		ErrorMessage:           r.ErrorMessage,
		CancelRequested:        r.CancelRequested,
		TotalIterations:        r.TotalIterations,
		DocumentsAnalyzed:      r.DocumentsAnalyzed,
		RAGQueriesExecuted:     r.RAGQueriesExecuted,
		FinalCompletenessScore: r.FinalCompletenessScore,
		TerminationReason:      r.TerminationReason,
		CreatedAt:              r.CreatedAt,
		CompletedAt:            r.CompletedAt,
	}
	if r.FinalAnalysisJSON != "" {
		var a model.Analysis
		if err := json.Unmarshal([]byte(r.FinalAnalysisJSON), &a); err != nil {
			return nil, err
		}
		job.FinalAnalysis = &a
	}
	if r.IterationHistoryJSON != "" {
		var history []model.IterationRecord
		if err := json.Unmarshal([]byte(r.IterationHistoryJSON), &history); err != nil {
			return nil, err
		}
		for i := range history {
			rehydratePayload(&history[i])
		}
		job.IterationHistory = history
	}
	return job, nil
}

func marshalOrEmpty(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rehydratePayload restores the typed shape of rec.Payload lost in the
// JSON round-trip, so model.AnalysisJob.LatestIterationAnalysis (which
// type-asserts to *model.Analysis) keeps working on a job reloaded from
// the store, not only on one still live in a controller run.
func rehydratePayload(rec *model.IterationRecord) {
	switch rec.Type {
	case model.IterationInitialAnalysis, model.IterationRefinedAnalysis:
		if raw, ok := rec.Payload["analysis"]; ok {
			if a := decodeAs[model.Analysis](raw); a != nil {
				rec.Payload["analysis"] = a
			}
		}
	case model.IterationEvaluation:
		if raw, ok := rec.Payload["evaluation"]; ok {
			if e := decodeAs[model.Evaluation](raw); e != nil {
				rec.Payload["evaluation"] = e
			}
		}
	case model.IterationRAGQueries:
		if raw, ok := rec.Payload["results"]; ok {
			if results := decodeAs[[]model.RAGQueryResult](raw); results != nil {
				rec.Payload["results"] = *results
			}
		}
	}
}

func decodeAs[T any](raw any) *T {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return &v
}
