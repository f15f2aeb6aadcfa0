// Package depwatcherrors enumerates the fixed set of error kinds the
// daemon branches on. Each is a sentinel wrapped with fmt.Errorf/%w so
// call sites can test with errors.Is while still carrying a
// human-readable cause.
package depwatcherrors

import "errors"

var (
	// ErrTransient marks an error the caller should log and skip, not fail on
	// (e.g. a stat failure on a single watched path during a scan).
	ErrTransient = errors.New("transient error")

	// ErrManifestParse marks a manifest that could not be parsed or was not
	// valid UTF-8. The reconciler records a failed task and never invokes
	// the adapter.
	ErrManifestParse = errors.New("manifest parse error")

	// ErrAdapterFailed marks a non-zero exit from a package-manager
	// subprocess. The owning task still completes; the failure is recorded
	// on the package row only.
	ErrAdapterFailed = errors.New("adapter invocation failed")

	// ErrCorruptState marks unrecoverable Store corruption (schema newer
	// than the binary understands, or a failed integrity check). Fatal:
	// the daemon exits non-zero and the supervisor applies backoff.
	ErrCorruptState = errors.New("store is corrupt")

	// ErrHeartbeatStale marks a heartbeat file older than 3x the
	// supervisor's check_interval. The supervisor kills and restarts the
	// daemon.
	ErrHeartbeatStale = errors.New("heartbeat is stale")

	// ErrAdvisorUnavailable marks any advisor failure (no responder,
	// timeout, malformed reply, connection failure). Always swallowed;
	// never surfaces as a task failure.
	ErrAdvisorUnavailable = errors.New("advisor unavailable")
)
