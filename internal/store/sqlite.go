package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on top of a single SQLite file, shared by the
// daemon and its supervisor.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path, applies the
// schema, and checks PRAGMA integrity_check and PRAGMA user_version against
// currentSchemaVersion.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single SQLite file with one writer: serialize at the connection
	// pool level rather than fight SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("run integrity check: %w", err)
	}
	if integrity != "ok" {
		return ErrCorruptState
	}

	if version > currentSchemaVersion {
		return ErrCorruptState
	}
	if version == currentSchemaVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, ecosystem, project_path, manifest_path, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ecosystem = excluded.ecosystem,
			project_path = excluded.project_path,
			manifest_path = excluded.manifest_path,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, t.ID, t.Ecosystem, t.ProjectPath, t.ManifestPath, string(t.Status), t.Error, created.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AdvanceTaskStatus(ctx context.Context, id string, status TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("advance task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance task %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListPendingTasks(ctx context.Context, limit int) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ecosystem, project_path, manifest_path, status, error, created_at, updated_at
		FROM tasks WHERE status = ? ORDER BY created_at ASC LIMIT ?
	`, string(TaskPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Task
	var status string
	var createdUnix, updatedUnix int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ecosystem, project_path, manifest_path, status, error, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.Ecosystem, &t.ProjectPath, &t.ManifestPath, &status, &t.Error, &createdUnix, &updatedUnix)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	t.Status = TaskStatus(status)
	t.CreatedAt = time.Unix(createdUnix, 0).UTC()
	t.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
	return t, nil
}

func (s *SQLiteStore) ResurrectProcessingTasks(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?`,
		string(TaskPending), time.Now().UTC().Unix(), string(TaskProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("resurrect processing tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resurrect processing tasks: %w", err)
	}
	return int(n), nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		var status string
		var createdUnix, updatedUnix int64
		if err := rows.Scan(&t.ID, &t.Ecosystem, &t.ProjectPath, &t.ManifestPath, &status, &t.Error, &createdUnix, &updatedUnix); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = TaskStatus(status)
		t.CreatedAt = time.Unix(createdUnix, 0).UTC()
		t.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) RecordTrackedFile(ctx context.Context, path, ecosystem string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_files (path, ecosystem, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET ecosystem = excluded.ecosystem, updated_at = excluded.updated_at
	`, path, ecosystem, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("record tracked file %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteStore) PurgeTrackedFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracked_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("purge tracked file %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteStore) IsTrackedFile(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tracked_files WHERE path = ?`, path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check tracked file %s: %w", path, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) UpsertPackageRecord(ctx context.Context, r PackageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO package_records (project_path, ecosystem, name, desired_spec, installed, dev, last_action, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_path, ecosystem, name) DO UPDATE SET
			desired_spec = excluded.desired_spec,
			installed = excluded.installed,
			dev = excluded.dev,
			last_action = excluded.last_action,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, r.ProjectPath, r.Ecosystem, r.Name, r.DesiredSpec, r.Installed, r.Dev, r.LastAction, r.LastError, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("upsert package record %s/%s: %w", r.ProjectPath, r.Name, err)
	}
	return nil
}

func (s *SQLiteStore) AppendRestartEvent(ctx context.Context, e RestartEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO restart_events (restart_count, reason, exit_code, log_excerpt, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		e.RestartCount, e.Reason, e.ExitCode, e.LogExcerpt, occurred.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append restart event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadWatchdogState(ctx context.Context) (WatchdogState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st WatchdogState
	var lastRestartUnix int64
	err := s.db.QueryRowContext(ctx,
		`SELECT restart_count, last_restart_time FROM watchdog_state WHERE id = 1`,
	).Scan(&st.RestartCount, &lastRestartUnix)
	if err == sql.ErrNoRows {
		return WatchdogState{}, nil
	}
	if err != nil {
		return WatchdogState{}, fmt.Errorf("read watchdog state: %w", err)
	}
	st.LastRestartTime = time.Unix(lastRestartUnix, 0).UTC()
	return st, nil
}

func (s *SQLiteStore) WriteWatchdogState(ctx context.Context, st WatchdogState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := st.LastRestartTime
	if last.IsZero() {
		last = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchdog_state (id, restart_count, last_restart_time) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET restart_count = excluded.restart_count, last_restart_time = excluded.last_restart_time
	`, st.RestartCount, last.Unix())
	if err != nil {
		return fmt.Errorf("write watchdog state: %w", err)
	}
	return nil
}
