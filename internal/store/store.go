// Package store implements depwatch's durable state: the task queue's
// backing rows, tracked manifests, last-known package state, and the
// supervisor's restart ledger, all in one SQLite file shared by the daemon
// and the supervisor.
package store

import "context"

// Store is the durable API every other depwatch component talks to instead
// of touching SQL directly.
type Store interface {
	// UpsertTask inserts a new task or updates an existing one by ID.
	UpsertTask(ctx context.Context, t Task) error

	// AdvanceTaskStatus transitions a task to status, recording errMsg (may
	// be empty) and bumping updated_at.
	AdvanceTaskStatus(ctx context.Context, id string, status TaskStatus, errMsg string) error

	// ListPendingTasks returns up to limit tasks in TaskPending status,
	// oldest first.
	ListPendingTasks(ctx context.Context, limit int) ([]Task, error)

	// GetTask returns a single task by ID, or ErrNotFound.
	GetTask(ctx context.Context, id string) (Task, error)

	// ResurrectProcessingTasks moves every task stuck in TaskProcessing back
	// to TaskPending. Called once by TaskQueue.Start to recover from a crash that
	// occurred mid-task; reconciler actions are idempotent so redoing a
	// half-finished task is always safe.
	ResurrectProcessingTasks(ctx context.Context) (int, error)

	// RecordTrackedFile marks a manifest path as known, for the given
	// ecosystem.
	RecordTrackedFile(ctx context.Context, path, ecosystem string) error

	// PurgeTrackedFile forgets a manifest path (it was deleted or excluded).
	PurgeTrackedFile(ctx context.Context, path string) error

	// IsTrackedFile reports whether path is already known.
	IsTrackedFile(ctx context.Context, path string) (bool, error)

	// UpsertPackageRecord records the latest known state of one dependency
	// within one project.
	UpsertPackageRecord(ctx context.Context, r PackageRecord) error

	// AppendRestartEvent records one supervisor restart.
	AppendRestartEvent(ctx context.Context, e RestartEvent) error

	// ReadWatchdogState returns the supervisor's persisted restart
	// bookkeeping, or the zero value if none has been written yet.
	ReadWatchdogState(ctx context.Context) (WatchdogState, error)

	// WriteWatchdogState persists the supervisor's restart bookkeeping.
	WriteWatchdogState(ctx context.Context, s WatchdogState) error

	// Close releases the underlying database handle.
	Close() error
}
