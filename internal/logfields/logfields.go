// Package logfields provides canonical log field names and helpers for
// structured logging across depwatch.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
// These are used for structured logging with slog.
const (
	KeyTaskID       = "task_id"
	KeyTaskKind     = "task_kind"
	KeyTaskStatus   = "task_status"
	KeyEcosystem    = "ecosystem"
	KeyStage        = "stage"
	KeyDurationMS   = "duration_ms"
	KeyPath         = "path"
	KeyFile         = "file"
	KeyWorker       = "worker"
	KeyError        = "error"
	KeyName         = "name"
	KeyVersion      = "version"
	KeyVersionSpec  = "version_spec"
	KeyAction       = "action"
	KeyProjectPath  = "project_path"
	KeyAdapter      = "adapter"
	KeyExitCode     = "exit_code"
	KeyRestartCount = "restart_count"
	KeyReason       = "reason"
	KeyPID          = "pid"
)

func TaskID(id string) slog.Attr      { return slog.String(KeyTaskID, id) }
func TaskKind(k string) slog.Attr     { return slog.String(KeyTaskKind, k) }
func TaskStatus(s string) slog.Attr   { return slog.String(KeyTaskStatus, s) }
func Ecosystem(e string) slog.Attr    { return slog.String(KeyEcosystem, e) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Worker(id string) slog.Attr      { return slog.String(KeyWorker, id) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func VersionSpec(v string) slog.Attr  { return slog.String(KeyVersionSpec, v) }
func Action(a string) slog.Attr       { return slog.String(KeyAction, a) }
func ProjectPath(p string) slog.Attr  { return slog.String(KeyProjectPath, p) }
func Adapter(a string) slog.Attr      { return slog.String(KeyAdapter, a) }
func ExitCode(c int) slog.Attr        { return slog.Int(KeyExitCode, c) }
func RestartCount(n int) slog.Attr    { return slog.Int(KeyRestartCount, n) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func PID(p int) slog.Attr             { return slog.Int(KeyPID, p) }

// Error returns a slog.Attr for an error, or an empty string if nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
