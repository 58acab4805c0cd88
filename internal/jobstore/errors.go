package jobstore

import "errors"

var (
	// ErrNotFound is returned by Get/Delete/RequestCancel when no job
	// with the given id exists (spec.md §8 "delete on a non-existent id
	// returns a consistent not-found").
	ErrNotFound = errors.New("jobstore: job not found")

	// ErrJobRunning is returned by Delete when the target job is
	// IN_PROGRESS (spec.md §4.8 "delete(id) — forbidden while
	// IN_PROGRESS").
	ErrJobRunning = errors.New("jobstore: job is in progress")

	// ErrEmptyIDs is returned by BulkDelete for an empty id list
	// (spec.md §8 "bulk delete with an empty list returns 400").
	ErrEmptyIDs = errors.New("jobstore: bulk delete requires at least one id")
)
