package store

// currentSchemaVersion is compared against PRAGMA user_version on Open. A
// database opened by a newer binary (version > currentSchemaVersion) fails
// with ErrCorruptState rather than risk silently misreading rows.
const currentSchemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	ecosystem     TEXT NOT NULL,
	project_path  TEXT NOT NULL,
	manifest_path TEXT NOT NULL,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at);

CREATE TABLE IF NOT EXISTS tracked_files (
	path       TEXT PRIMARY KEY,
	ecosystem  TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS package_records (
	project_path TEXT NOT NULL,
	ecosystem    TEXT NOT NULL,
	name         TEXT NOT NULL,
	desired_spec TEXT NOT NULL,
	installed    INTEGER NOT NULL DEFAULT 0,
	dev          INTEGER NOT NULL DEFAULT 0,
	last_action  TEXT NOT NULL DEFAULT '',
	last_error   TEXT NOT NULL DEFAULT '',
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (project_path, ecosystem, name)
);

CREATE TABLE IF NOT EXISTS restart_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	restart_count INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	exit_code     INTEGER NOT NULL DEFAULT 0,
	log_excerpt   TEXT NOT NULL DEFAULT '',
	occurred_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS watchdog_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	restart_count     INTEGER NOT NULL,
	last_restart_time INTEGER NOT NULL
);
`
