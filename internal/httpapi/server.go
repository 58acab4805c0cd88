// Package httpapi implements the logical HTTP surface of spec.md §6: a
// plain net/http.ServeMux using Go 1.22's method+wildcard pattern
// routing, deliberately not a framework — §1 names "HTTP framework,
// request routing" an explicit non-goal, so this is the thinnest JSON
// binding that could front the job model (C8) without adopting one.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finsight/analyst/internal/jobstore"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/scheduler"
)

// minQueryLength is spec.md §6's validation rule for POST
// /analysis/iterative: `query:string≥10`.
const minQueryLength = 10

// estimatedCompletionMessage mirrors original_source's static estimate
// (backend/analysis/views.py `create`); the controller has no duration
// model to compute a real one from.
const estimatedCompletionMessage = "2-5 minutes depending on complexity"

// Server wires the job scheduler and document registry to JSON
// handlers.
type Server struct {
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	logger    *slog.Logger
}

// New builds a Server.
func New(sched *scheduler.Scheduler, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{scheduler: sched, registry: reg, logger: logger}
}

// Routes returns the mux a real HTTP server (or any framework that can
// delegate to a http.Handler) mounts.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analysis/iterative", s.handleCreate)
	mux.HandleFunc("GET /analysis/iterative/service_status", s.handleServiceStatus)
	mux.HandleFunc("POST /analysis/iterative/bulk_delete", s.handleBulkDelete)
	mux.HandleFunc("GET /analysis/iterative/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /analysis/iterative/{id}/results", s.handleResults)
	mux.HandleFunc("GET /analysis/iterative/{id}/iteration_details", s.handleIterationDetails)
	mux.HandleFunc("POST /analysis/iterative/{id}/cancel", s.handleCancel)
	mux.HandleFunc("DELETE /analysis/iterative/{id}", s.handleDelete)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

type createRequest struct {
	Query         string `json:"query"`
	CompanyFilter string `json:"companyFilter,omitempty"`
}

type createResponse struct {
	ID                  int64  `json:"id"`
	Status              string `json:"status"`
	Query               string `json:"query"`
	CompanyFilter       string `json:"companyFilter,omitempty"`
	EstimatedCompletion string `json:"estimatedCompletion"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(strings.TrimSpace(req.Query)) < minQueryLength {
		writeError(w, http.StatusBadRequest, "query must be at least 10 characters")
		return
	}

	job, err := s.scheduler.Create(r.Context(), req.Query, req.CompanyFilter)
	if err != nil {
		s.logger.Error("httpapi: create analysis failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create analysis")
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ID:                  job.ID,
		Status:              string(job.Status),
		Query:               job.Query,
		CompanyFilter:       job.CompanyFilter,
		EstimatedCompletion: estimatedCompletionMessage,
	})
}

type progress struct {
	TotalIterations        int `json:"totalIterations"`
	DocumentsAnalyzed      int `json:"documentsAnalyzed"`
	RAGQueriesExecuted     int `json:"ragQueriesExecuted"`
	FinalCompletenessScore int `json:"finalCompletenessScore"`
}

type statusResponse struct {
	ID                     int64           `json:"id"`
	Status                 string          `json:"status"`
	Query                  string          `json:"query"`
	CompanyFilter          string          `json:"companyFilter,omitempty"`
	CancelRequested        bool            `json:"cancelRequested"`
	CreatedAt              time.Time       `json:"createdAt"`
	CompletedAt            *time.Time      `json:"completedAt,omitempty"`
	Progress               progress        `json:"progress"`
	FinalRecommendation    string          `json:"finalRecommendation,omitempty"`
	ConfidenceLevel        string          `json:"confidenceLevel,omitempty"`
	HasPartialResults      *bool           `json:"hasPartialResults,omitempty"`
	LatestIterationAnalysis *model.Analysis `json:"latestIterationAnalysis,omitempty"`
	TerminationReason      string          `json:"terminationReason,omitempty"`
	ErrorMessage           string          `json:"errorMessage,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	job, err := s.scheduler.Status(r.Context(), id)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	resp := statusResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		Query:           job.Query,
		CompanyFilter:   job.CompanyFilter,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
		Progress: progress{
			TotalIterations:        job.TotalIterations,
			DocumentsAnalyzed:      job.DocumentsAnalyzed,
			RAGQueriesExecuted:     job.RAGQueriesExecuted,
			FinalCompletenessScore: job.FinalCompletenessScore,
		},
	}

	switch job.Status {
	case model.JobStatusCompleted:
		resp.FinalRecommendation = job.FinalAnalysis.FinalRecommendation()
		if job.FinalAnalysis != nil {
			resp.ConfidenceLevel = job.FinalAnalysis.ConfidenceLevel
		}
	case model.JobStatusFailed, model.JobStatusCancelled:
		hasPartials := job.HasPartialResults()
		resp.HasPartialResults = &hasPartials
		resp.ErrorMessage = job.ErrorMessage
		resp.TerminationReason = job.TerminationReason
		if hasPartials {
			resp.LatestIterationAnalysis = job.LatestIterationAnalysis()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	job, err := s.scheduler.Results(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrResultsNotReady) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJobLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type iterationDetailsResponse struct {
	AnalysisID       int64                   `json:"analysisId"`
	Query            string                  `json:"query"`
	TotalIterations  int                     `json:"totalIterations"`
	FinalScore       int                     `json:"finalScore"`
	IterationHistory []model.IterationRecord `json:"iterationHistory"`
	Status           string                  `json:"status"`
}

func (s *Server) handleIterationDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	job, err := s.scheduler.Status(r.Context(), id)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iterationDetailsResponse{
		AnalysisID:       job.ID,
		Query:            job.Query,
		TotalIterations:  job.TotalIterations,
		FinalScore:       job.FinalCompletenessScore,
		IterationHistory: job.IterationHistory,
		Status:           string(job.Status),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	job, err := s.scheduler.RequestCancel(r.Context(), id)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              job.ID,
		"status":          string(job.Status),
		"cancelRequested": job.CancelRequested,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.scheduler.Delete(r.Context(), id); err != nil {
		if errors.Is(err, jobstore.ErrJobRunning) {
			writeError(w, http.StatusBadRequest, "cannot delete a running analysis; cancel it first")
			return
		}
		writeJobLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	AnalysisIDs []int64 `json:"analysisIds"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	count, running, err := s.scheduler.BulkDelete(r.Context(), req.AnalysisIDs)
	if err != nil {
		if errors.Is(err, jobstore.ErrEmptyIDs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(running) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "cannot delete running analyses",
			"runningAnalyses":  running,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": count})
}

type serviceStatusResponse struct {
	Available          bool     `json:"available"`
	DocumentsAvailable int      `json:"documentsAvailable"`
	CompaniesAvailable int      `json:"companiesAvailable"`
	Capabilities       []string `json:"capabilities"`
}

// serviceCapabilities mirrors original_source's static capability list
// (backend/analysis/views.py `service_status`).
var serviceCapabilities = []string{
	"Iterative analysis with self-improvement",
	"RAG-powered document querying",
	"Completeness evaluation and gap identification",
	"Targeted information retrieval",
	"Multi-iteration refinement",
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.registry.Stats()
	if err != nil {
		writeJSON(w, http.StatusOK, serviceStatusResponse{Available: false})
		return
	}
	writeJSON(w, http.StatusOK, serviceStatusResponse{
		Available:          true,
		DocumentsAvailable: stats.TotalDocuments,
		CompaniesAvailable: len(stats.Companies),
		Capabilities:       serviceCapabilities,
	})
}

func writeJobLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, jobstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
