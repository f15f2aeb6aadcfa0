// Package daemon wires every depwatch component -- store, heartbeat,
// watcher, task queue, reconcilers, advisor -- into the single long-running
// worker process the supervisor spawns and supervises from the outside.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/riverrun/depwatch/internal/advisor"
	"github.com/riverrun/depwatch/internal/config"
	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/heartbeat"
	"github.com/riverrun/depwatch/internal/logfields"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/reconcile"
	"github.com/riverrun/depwatch/internal/store"
	"github.com/riverrun/depwatch/internal/taskqueue"
	"github.com/riverrun/depwatch/internal/watcher"
	"github.com/riverrun/depwatch/internal/workspace"
)

// Paths collects the filesystem locations the daemon and its collaborators
// read or write, all derived from one runtime directory so a single flag
// (--config) is enough to stand up a full instance.
type Paths struct {
	ConfigPath    string
	StorePath     string
	HeartbeatPath string
	PIDPath       string
}

// Daemon owns one reconciliation run: a live config, a store, a file
// watcher, a task queue, and one reconciler per ecosystem.
type Daemon struct {
	paths    Paths
	recorder metrics.Recorder

	mu  sync.RWMutex
	cfg config.Config

	st        store.Store
	hb        *heartbeat.Heartbeat
	fw        *watcher.FileWatcher
	tq        *taskqueue.TaskQueue
	cw        *ConfigWatcher
	advisor   *advisor.Client
	workspace string

	reconcilers map[string]reconcile.Reconciler
}

// New loads configuration, opens the store, and assembles every
// collaborator, but starts nothing yet -- call Run to begin processing.
func New(ctx context.Context, paths Paths, recorder metrics.Recorder) (*Daemon, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	root, err := workspace.Resolve(cfg.WorkspaceRoot, filepath.Dir(paths.ConfigPath))
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	st, err := store.Open(ctx, paths.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", depwatcherrors.ErrCorruptState, err)
	}

	d := &Daemon{
		paths:     paths,
		recorder:  recorder,
		cfg:       cfg,
		st:        st,
		workspace: root,
	}

	adv := advisor.New(cfg.NATSURL, advisor.WithReconnectInterval(secondsToDuration(cfg.AdvisorReconnectSeconds, 300)))
	adv.SetRecorder(recorder)
	d.advisor = adv

	d.reconcilers = map[string]reconcile.Reconciler{
		ecosystem.Python.String():     reconcile.NewPythonReconciler(adv),
		ecosystem.JavaScript.String(): reconcile.NewJavaScriptReconciler(adv),
		ecosystem.Rust.String():       reconcile.NewRustReconciler(adv),
	}

	d.tq = taskqueue.New(st, d.handleTask, cfg.TaskQueueWorkers, 256)
	d.tq.SetRecorder(recorder)

	d.fw = watcher.New(root, cfg.FilePatterns, cfg.IgnorePatterns,
		secondsToDuration(cfg.ScanIntervalSeconds, 2), secondsToDuration(cfg.DebounceSeconds, 1), d.handleWatchEvent)

	d.hb = heartbeat.New(paths.HeartbeatPath, paths.PIDPath, secondsToDuration(cfg.Watchdog.HeartbeatIntervalSeconds, 5))

	cw, err := NewConfigWatcher(paths.ConfigPath, d)
	if err != nil {
		return nil, fmt.Errorf("build config watcher: %w", err)
	}
	d.cw = cw

	return d, nil
}

// Run starts every collaborator and blocks until ctx is canceled. It
// returns an error only when the heartbeat or the task queue fails to
// start (a corrupt store is already reported by New); everything else is
// handled internally.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.hb.Start(ctx); err != nil {
		return fmt.Errorf("start heartbeat: %w", err)
	}
	defer d.hb.Stop()

	if err := d.tq.Start(ctx); err != nil {
		return fmt.Errorf("start task queue: %w", err)
	}
	defer d.tq.Stop()

	d.fw.Start(ctx)
	defer d.fw.Stop()

	if err := d.cw.Start(ctx); err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", logfields.Error(err))
	} else {
		defer d.cw.Stop(ctx)
	}

	slog.Info("daemon running", logfields.Path(d.workspace))
	<-ctx.Done()
	slog.Info("daemon shutting down")
	d.advisor.Close()
	return nil
}

// GetConfig returns the currently active configuration.
func (d *Daemon) GetConfig() config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig atomically swaps in a validated configuration and live-applies
// the subset of fields that don't require a restart: file_patterns and
// ignore_patterns propagate to the running FileWatcher immediately.
// workspace_root and watchdog.* changes are accepted into cfg but only take
// effect the next time the supervisor restarts the daemon.
func (d *Daemon) ReloadConfig(ctx context.Context, cfg config.Config) error {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.fw.UpdateGlobs(cfg.FilePatterns, cfg.IgnorePatterns)
	slog.Info("applied reloaded configuration")
	return nil
}

// handleWatchEvent is the FileWatcher.Handler: record or purge the tracked
// manifest, then enqueue a reconciliation task for anything still present.
func (d *Daemon) handleWatchEvent(ctx context.Context, ev watcher.Event) {
	eco := ev.Ecosystem.String()

	if ev.Kind == watcher.EventRemoved {
		if err := d.st.PurgeTrackedFile(ctx, ev.Path); err != nil {
			slog.Warn("purge tracked file failed", logfields.Path(ev.Path), logfields.Error(err))
		}
		return
	}

	if err := d.st.RecordTrackedFile(ctx, ev.Path, eco); err != nil {
		slog.Warn("record tracked file failed", logfields.Path(ev.Path), logfields.Error(err))
		return
	}

	projectPath := filepath.Dir(ev.Path)
	if _, err := d.tq.Enqueue(ctx, eco, projectPath, ev.Path); err != nil {
		slog.Warn("enqueue task failed", logfields.Path(ev.Path), logfields.Error(err))
	}
}

// handleTask is the taskqueue.Handler: dispatch to the reconciler matching
// the task's ecosystem, then persist every per-dependency outcome. A hard
// Reconcile error (manifest parse failure, adapter ListInstalled failure)
// fails the task; a per-dependency ActionFailed entry does not -- it's
// recorded on that package's row and the task still completes.
func (d *Daemon) handleTask(ctx context.Context, t store.Task) error {
	r, ok := d.reconcilers[t.Ecosystem]
	if !ok {
		return fmt.Errorf("no reconciler registered for ecosystem %q", t.Ecosystem)
	}

	report, err := r.Reconcile(ctx, t.ProjectPath, t.ManifestPath)
	if err != nil {
		return err
	}

	for _, action := range report.Actions {
		rec := store.PackageRecord{
			ProjectPath: t.ProjectPath,
			Ecosystem:   t.Ecosystem,
			Name:        action.Name,
			DesiredSpec: action.DesiredSpec,
			Installed:   action.Installed,
			Dev:         action.Dev,
			LastAction:  string(action.Kind),
			LastError:   action.Error,
		}
		if err := d.st.UpsertPackageRecord(ctx, rec); err != nil {
			slog.Warn("upsert package record failed", logfields.Name(action.Name), logfields.Error(err))
		}
		d.recorder.IncAdapterInvocation(t.Ecosystem, string(action.Kind), action.Error == "")
	}
	return nil
}

func secondsToDuration(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
