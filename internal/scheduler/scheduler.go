// Package scheduler implements the execution half of the job model
// (C8, spec.md §4.8): it spawns the iterative analysis controller on a
// background worker per job, bounded by a concurrency limiter, the way
// Tangerg/lynx's core/scheduler runs its broker-fed worker loop under
// an xsync.Limiter — except here each job gets its own worker rather
// than pulling from a shared queue, since jobs are independent
// (spec.md §5 "Across analysis jobs: no ordering").
package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/finsight/analyst/internal/controller"
	"github.com/finsight/analyst/internal/jobstore"
	"github.com/finsight/analyst/internal/model"
	"github.com/finsight/analyst/internal/xsync"
)

// ErrResultsNotReady is returned by Results for a job that is neither
// COMPLETED nor a terminal-non-success job with partial results
// (spec.md §4.8 "results(id) — permitted for COMPLETED OR
// {CANCELLED,FAILED} ∧ hasPartialResults()").
var ErrResultsNotReady = errors.New("scheduler: results not available for this job's current status")

// Scheduler ties the job store to the analysis controller.
type Scheduler struct {
	store      *jobstore.Store
	controller *controller.Controller
	limiter    *xsync.Limiter
	logger     *slog.Logger
}

// New builds a Scheduler that runs at most maxConcurrent analyses at
// once.
func New(store *jobstore.Store, c *controller.Controller, maxConcurrent int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, controller: c, limiter: xsync.NewLimiter(maxConcurrent), logger: logger}
}

// Create persists a new job and spawns its controller run on a
// background worker, returning as soon as the row exists (spec.md
// §4.8 "Execution").
func (s *Scheduler) Create(ctx context.Context, query, companyFilter string) (*model.AnalysisJob, error) {
	job, err := s.store.Create(ctx, query, companyFilter)
	if err != nil {
		return nil, err
	}

	xsync.Go(func() {
		s.limiter.Acquire()
		defer s.limiter.Release()
		s.run(job.ID, query, companyFilter)
	}, func(err error) {
		s.logger.Error("scheduler: analysis worker panicked", slog.Int64("jobId", job.ID), slog.String("err", err.Error()))
		_ = s.store.Finalize(context.Background(), job.ID, &controller.Result{
			Failed:       true,
			ErrorMessage: "internal error during analysis",
		})
	})

	return job, nil
}

func (s *Scheduler) run(jobID int64, query, companyFilter string) {
	ctx := context.Background()
	cancelSignal := func() bool { return s.store.IsCancelRequested(ctx, jobID) }
	updater := s.store.Updater(jobID)

	result := s.controller.Run(ctx, query, companyFilter, cancelSignal, updater)

	if err := s.store.Finalize(ctx, jobID, result); err != nil {
		s.logger.Error("scheduler: finalize failed", slog.Int64("jobId", jobID), slog.String("err", err.Error()))
	}
}

// Status reloads a job's current state (spec.md §4.8 "status(id)").
func (s *Scheduler) Status(ctx context.Context, id int64) (*model.AnalysisJob, error) {
	return s.store.Get(ctx, id)
}

// Results returns a job's full payload, refusing jobs that are neither
// COMPLETED nor carrying partial results.
func (s *Scheduler) Results(ctx context.Context, id int64) (*model.AnalysisJob, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusCompleted || job.HasPartialResults() {
		return job, nil
	}
	return nil, ErrResultsNotReady
}

// RequestCancel flags a job for cooperative cancellation, idempotently.
func (s *Scheduler) RequestCancel(ctx context.Context, id int64) (*model.AnalysisJob, error) {
	return s.store.RequestCancel(ctx, id)
}

// Delete removes one job, forbidden while IN_PROGRESS.
func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// BulkDelete removes every job in ids unless any is IN_PROGRESS.
func (s *Scheduler) BulkDelete(ctx context.Context, ids []int64) (deletedCount int, running []int64, err error) {
	return s.store.BulkDelete(ctx, ids)
}

// ListAll returns every job, for the admin CLI.
func (s *Scheduler) ListAll(ctx context.Context) ([]*model.AnalysisJob, error) {
	return s.store.ListAll(ctx)
}
