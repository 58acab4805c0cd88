// Package jobstore implements the persisted half of the job model (C8,
// spec.md §3, §4.8): a GORM-backed analysis-jobs table, pragma-tuned the
// way ternarybob-quaero's internal/storage/sqlite opens its embedded
// SQLite connection, durable via modernc.org/sqlite (no CGO) through the
// glebarez/sqlite GORM dialector.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finsight/analyst/internal/controller"
	"github.com/finsight/analyst/internal/model"
)

// Store owns the analysis-jobs table.
type Store struct {
	db *gorm.DB
}

// Open creates (if needed) and migrates the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore: open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("jobstore: underlying db handle: %w", err)
	}
	// SQLite tolerates at most one writer; matches the pool sizing
	// ternarybob-quaero/internal/storage/sqlite uses to avoid
	// SQLITE_BUSY under concurrent job writes.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("jobstore: %s: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&analysisJobRecord{}); err != nil {
		return nil, fmt.Errorf("jobstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create persists a new job already IN_PROGRESS (spec.md §4.8
// "Execution": "create persists a new job in IN_PROGRESS, then spawns
// the controller on a background worker"). The scheduler is responsible
// for actually launching that worker.
func (s *Store) Create(ctx context.Context, query, companyFilter string) (*model.AnalysisJob, error) {
	rec := &analysisJobRecord{
		Query:         query,
		CompanyFilter: companyFilter,
		Status:        string(model.JobStatusInProgress),
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("jobstore: create: %w", err)
	}
	return fromRecord(rec)
}

// Get reloads one job by id.
func (s *Store) Get(ctx context.Context, id int64) (*model.AnalysisJob, error) {
	var rec analysisJobRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobstore: get %d: %w", id, err)
	}
	return fromRecord(&rec)
}

// ListAll returns every job, oldest first, for the admin CLI.
func (s *Store) ListAll(ctx context.Context) ([]*model.AnalysisJob, error) {
	var recs []analysisJobRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	jobs := make([]*model.AnalysisJob, 0, len(recs))
	for i := range recs {
		job, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Updater returns the controller.ProgressUpdater the scheduler hands to
// Controller.Run for job id — every phase boundary's snapshot lands
// directly in the analysis-jobs row (spec.md §5 "persistence SHOULD
// happen before the next phase starts").
func (s *Store) Updater(id int64) controller.ProgressUpdater {
	return &jobUpdater{store: s, id: id}
}

type jobUpdater struct {
	store *Store
	id    int64
}

func (u *jobUpdater) Persist(ctx context.Context, snap controller.Snapshot) error {
	return u.store.persistSnapshot(ctx, u.id, snap)
}

func (s *Store) persistSnapshot(ctx context.Context, id int64, snap controller.Snapshot) error {
	finalAnalysisJSON, err := marshalOrEmpty(snap.FinalAnalysis)
	if err != nil {
		return err
	}
	historyJSON, err := marshalOrEmpty(snap.IterationHistory)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"total_iterations":        snap.TotalIterations,
		"rag_queries_executed":    snap.RAGQueriesExecuted,
		"final_completeness_score": snap.FinalCompletenessScore,
		"final_analysis_json":     finalAnalysisJSON,
		"iteration_history_json":  historyJSON,
	}
	return s.db.WithContext(ctx).Model(&analysisJobRecord{}).Where("id = ?", id).Updates(updates).Error
}

// Finalize writes a controller.Result's terminal outcome. The WHERE
// clause only matches a still-IN_PROGRESS row, enforcing spec.md §8
// invariant 6 ("a job in a terminal state never transitions again")
// even if Finalize were ever called twice for the same id.
func (s *Store) Finalize(ctx context.Context, id int64, result *controller.Result) error {
	status := model.JobStatusCompleted
	switch {
	case result.Cancelled:
		status = model.JobStatusCancelled
	case result.Failed:
		status = model.JobStatusFailed
	}

	finalAnalysisJSON, err := marshalOrEmpty(result.FinalAnalysis)
	if err != nil {
		return err
	}
	historyJSON, err := marshalOrEmpty(result.IterationHistory)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]any{
		"status":                   string(status),
		"error_message":            result.ErrorMessage,
		"total_iterations":         result.TotalIterations,
		"documents_analyzed":       result.DocumentsAnalyzed,
		"rag_queries_executed":     result.RAGQueriesExecuted,
		"final_completeness_score": result.FinalCompletenessScore,
		"final_analysis_json":      finalAnalysisJSON,
		"iteration_history_json":   historyJSON,
		"termination_reason":       result.TerminationReason,
		"completed_at":             &now,
	}
	return s.db.WithContext(ctx).Model(&analysisJobRecord{}).
		Where("id = ? AND status = ?", id, string(model.JobStatusInProgress)).
		Updates(updates).Error
}

// RequestCancel sets cancelRequested, idempotently: a job already
// terminal is left untouched and its current state returned (spec.md
// §8 "cancel is idempotent; second call on a terminal job is a no-op").
func (s *Store) RequestCancel(ctx context.Context, id int64) (*model.AnalysisJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	if err := s.db.WithContext(ctx).Model(&analysisJobRecord{}).
		Where("id = ?", id).Update("cancel_requested", true).Error; err != nil {
		return nil, fmt.Errorf("jobstore: request cancel %d: %w", id, err)
	}
	job.CancelRequested = true
	return job, nil
}

// IsCancelRequested reloads just the cancelRequested column — this is
// the cancelSignal the scheduler polls (spec.md §4.8 "cancelSignal :=
// () -> jobReload(id).cancelRequested"). A reload error is treated as
// "not cancelled" so a transient store hiccup cannot abort a run.
func (s *Store) IsCancelRequested(ctx context.Context, id int64) bool {
	var rec analysisJobRecord
	if err := s.db.WithContext(ctx).Select("cancel_requested").First(&rec, id).Error; err != nil {
		return false
	}
	return rec.CancelRequested
}

// Delete removes one job, refusing while it is IN_PROGRESS.
func (s *Store) Delete(ctx context.Context, id int64) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusInProgress {
		return ErrJobRunning
	}
	return s.db.WithContext(ctx).Delete(&analysisJobRecord{}, id).Error
}

// BulkDelete deletes every id in ids, unless any of them is
// IN_PROGRESS, in which case nothing is deleted and the offending ids
// are returned (spec.md §4.8 "bulkDelete(ids) — forbidden if any is
// IN_PROGRESS (returns the offending id list)").
func (s *Store) BulkDelete(ctx context.Context, ids []int64) (deletedCount int, running []int64, err error) {
	if len(ids) == 0 {
		return 0, nil, ErrEmptyIDs
	}
	var recs []analysisJobRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return 0, nil, fmt.Errorf("jobstore: bulk delete lookup: %w", err)
	}
	for _, r := range recs {
		if model.JobStatus(r.Status) == model.JobStatusInProgress {
			running = append(running, r.ID)
		}
	}
	if len(running) > 0 {
		return 0, running, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&analysisJobRecord{})
	if res.Error != nil {
		return 0, nil, fmt.Errorf("jobstore: bulk delete: %w", res.Error)
	}
	return int(res.RowsAffected), nil, nil
}
