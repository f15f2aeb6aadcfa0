package store

import "time"

// TaskStatus is the lifecycle state of a queued reconciliation task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is a unit of reconciliation work: "re-read this manifest and bring
// installed packages in line with it."
type Task struct {
	ID          string
	Ecosystem   string // ecosystem.Ecosystem.String(), stored as a plain string
	ProjectPath string
	ManifestPath string
	Status      TaskStatus
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TrackedFile is a manifest the watcher has seen at least once, recorded so
// a restart can tell which manifests are already known versus newly
// discovered.
type TrackedFile struct {
	Path      string
	Ecosystem string
	UpdatedAt time.Time
}

// PackageRecord is the last known state of one declared dependency within
// one project: what the manifest asked for, what reconciliation did about
// it, and whether that action succeeded.
type PackageRecord struct {
	ProjectPath string
	Ecosystem   string
	Name        string
	DesiredSpec string
	Installed   bool
	Dev         bool // JavaScript/Rust only; always false for Python
	LastAction  string // "install", "upgrade", "noop", "failed"
	LastError   string
	UpdatedAt   time.Time
}

// RestartEvent records one supervisor-initiated restart of the daemon.
type RestartEvent struct {
	ID           int64
	RestartCount int
	Reason       string
	ExitCode     int
	LogExcerpt   string
	OccurredAt   time.Time
}

// WatchdogState is the supervisor's persisted restart bookkeeping, read back
// at startup so backoff continues across a supervisor restart of its own.
type WatchdogState struct {
	RestartCount    int
	LastRestartTime time.Time
}
