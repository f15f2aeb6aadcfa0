package store

import "errors"

// ErrCorruptState is returned by Open when a PRAGMA integrity_check does not
// report "ok", or the database's schema version is newer than this binary
// understands.
// Callers should treat this as fatal: log and exit non-zero so the
// supervisor's backoff applies.
var ErrCorruptState = errors.New("store: corrupt or unrecognized schema state")

// ErrNotFound is returned when a lookup by ID finds no matching row.
var ErrNotFound = errors.New("store: not found")
