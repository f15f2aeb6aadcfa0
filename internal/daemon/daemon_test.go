package daemon

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/riverrun/depwatch/internal/adapter"
	"github.com/riverrun/depwatch/internal/config"
	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/reconcile"
	"github.com/riverrun/depwatch/internal/store"
	"github.com/riverrun/depwatch/internal/taskqueue"
	"github.com/riverrun/depwatch/internal/watcher"
)

// fakeAdapter is a no-subprocess stand-in for adapter.PackageManagerAdapter,
// the same pattern internal/reconcile's own tests use to avoid shelling out
// to a real package manager.
type fakeAdapter struct {
	installed map[string]string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ListInstalled(ctx context.Context, projectPath string) (map[string]string, error) {
	return f.installed, nil
}

func (f *fakeAdapter) Install(ctx context.Context, projectPath string, pkg adapter.PackageSpec) (adapter.Result, error) {
	if f.installed == nil {
		f.installed = map[string]string{}
	}
	f.installed[pkg.Name] = "1.0.0"
	return adapter.Result{Command: "fake install", ExitCode: 0}, nil
}

func (f *fakeAdapter) Outdated(ctx context.Context, projectPath string) (map[string]string, error) {
	return nil, nil
}

func newTestDaemon(t *testing.T, workspaceRoot string) *Daemon {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.json")
	root := workspaceRoot
	cfg := config.Config{
		FilePatterns:   []string{"**/requirements.txt", "**/package.json", "**/Cargo.toml"},
		IgnorePatterns: []string{"**/node_modules/**"},
		WorkspaceRoot:  &root,
		NATSURL:        "nats://127.0.0.1:0",
	}
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	st, err := store.Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	d, err := New(t.Context(), Paths{
		ConfigPath:    configPath,
		StorePath:     ":memory:",
		HeartbeatPath: filepath.Join(t.TempDir(), "heartbeat"),
		PIDPath:       filepath.Join(t.TempDir(), "pid"),
	}, metrics.NoopRecorder{})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	// New opened its own store at StorePath; swap in the shared in-memory
	// one the test can also inspect, and rebuild the task queue on it so
	// enqueued tasks land in that store too. Tests that run handleTask
	// install their own fake-adapter-backed reconciler.
	d.st.Close()
	d.st = st
	d.tq = taskqueue.New(st, d.handleTask, d.cfg.TaskQueueWorkers, 256)
	return d
}

func TestNewResolvesExplicitWorkspaceRoot(t *testing.T) {
	d := newTestDaemon(t, t.TempDir())
	if d.workspace == "" {
		t.Fatal("expected non-empty resolved workspace root")
	}
}

func TestHandleWatchEventRecordsAndEnqueues(t *testing.T) {
	root := t.TempDir()
	d := newTestDaemon(t, root)

	manifestPath := filepath.Join(root, "requirements.txt")
	if err := os.WriteFile(manifestPath, []byte("flask==2.0.0\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	ctx := t.Context()
	d.handleWatchEvent(ctx, watcher.Event{Path: manifestPath, Ecosystem: ecosystem.Python, Kind: watcher.EventCreated})

	tracked, err := d.st.IsTrackedFile(ctx, manifestPath)
	if err != nil {
		t.Fatalf("is tracked file: %v", err)
	}
	if !tracked {
		t.Fatal("expected manifest to be recorded as tracked")
	}

	pending, err := d.st.ListPendingTasks(ctx, 10)
	if err != nil {
		t.Fatalf("list pending tasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].ManifestPath != manifestPath {
		t.Fatalf("expected task for %s, got %s", manifestPath, pending[0].ManifestPath)
	}
}

func TestHandleWatchEventPurgesOnRemoval(t *testing.T) {
	root := t.TempDir()
	d := newTestDaemon(t, root)
	ctx := t.Context()

	manifestPath := filepath.Join(root, "requirements.txt")
	if err := d.st.RecordTrackedFile(ctx, manifestPath, "python"); err != nil {
		t.Fatalf("seed tracked file: %v", err)
	}

	ev := watcher.Event{Path: manifestPath, Ecosystem: ecosystem.Python, Kind: watcher.EventRemoved}
	d.handleWatchEvent(ctx, ev)

	tracked, err := d.st.IsTrackedFile(ctx, manifestPath)
	if err != nil {
		t.Fatalf("is tracked file: %v", err)
	}
	if tracked {
		t.Fatal("expected manifest to no longer be tracked after removal")
	}
}

func TestHandleTaskInstallsDeclaredPackage(t *testing.T) {
	root := t.TempDir()
	d := newTestDaemon(t, root)
	ctx := t.Context()

	fa := &fakeAdapter{installed: map[string]string{}}
	d.reconcilers[ecosystem.Python.String()] = &reconcile.PythonReconciler{Adapter: fa}

	manifestPath := filepath.Join(root, "requirements.txt")
	if err := os.WriteFile(manifestPath, []byte("flask>=2.0.0\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	task := store.Task{ID: "t1", Ecosystem: "python", ProjectPath: root, ManifestPath: manifestPath, Status: store.TaskProcessing}
	if err := d.handleTask(ctx, task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	if _, ok := fa.installed["flask"]; !ok {
		t.Fatal("expected fake adapter to record flask install")
	}
}

func TestHandleTaskUnknownEcosystemFails(t *testing.T) {
	d := newTestDaemon(t, t.TempDir())
	task := store.Task{ID: "t1", Ecosystem: "cobol", ProjectPath: "/nowhere", ManifestPath: "/nowhere/manifest"}
	if err := d.handleTask(t.Context(), task); err == nil {
		t.Fatal("expected error for unregistered ecosystem")
	}
}

func TestReloadConfigAppliesNewGlobsAndWarnsOnRestartFields(t *testing.T) {
	root := t.TempDir()
	d := newTestDaemon(t, root)

	before := d.GetConfig()
	next := before
	next.FilePatterns = []string{"**/package.json"}
	otherRoot := t.TempDir()
	next.WorkspaceRoot = &otherRoot
	next.Watchdog.CheckIntervalSeconds = before.Watchdog.CheckIntervalSeconds + 1

	var logBuf bytes.Buffer
	prevLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, nil)))
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	if err := validateConfigChange(before, next); err != nil {
		t.Fatalf("validateConfigChange: %v", err)
	}
	logged := logBuf.String()
	if !strings.Contains(logged, "workspace_root changed") || !strings.Contains(logged, "watchdog settings changed") {
		t.Fatalf("expected restart warnings for workspace_root and watchdog, got log %q", logged)
	}
	if err := d.ReloadConfig(t.Context(), next); err != nil {
		t.Fatalf("reload config: %v", err)
	}

	got := d.GetConfig()
	if len(got.FilePatterns) != 1 || got.FilePatterns[0] != "**/package.json" {
		t.Fatalf("expected reloaded file patterns to apply, got %+v", got.FilePatterns)
	}
}

func TestRootChanged(t *testing.T) {
	a := "x"
	b := "y"
	cases := []struct {
		a, b *string
		want bool
	}{
		{nil, nil, false},
		{&a, nil, true},
		{nil, &b, true},
		{&a, &a, false},
		{&a, &b, true},
	}
	for _, c := range cases {
		if got := rootChanged(c.a, c.b); got != c.want {
			t.Fatalf("rootChanged(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
