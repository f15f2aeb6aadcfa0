// Package watcher implements the polling FileWatcher: periodic scans for
// manifest files, debounced per path before a change is delivered. This is
// deliberately not fsnotify-based (fsnotify is reserved for the ambient
// config hot-reload watcher in internal/daemon) -- scanning a workspace of
// arbitrary size and depth on a fixed interval is simpler to reason about
// than kernel-event backpressure across thousands of watched directories.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/logfields"
)

// EventKind classifies what happened to a watched manifest.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

// Event describes one debounced, re-verified manifest change.
type Event struct {
	Path      string
	Ecosystem ecosystem.Ecosystem
	Kind      EventKind
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, ev Event)

type fileState struct {
	modTime time.Time
	size    int64
}

// FileWatcher polls root on ScanInterval for files matching the ecosystem
// manifest filenames and the configured include/exclude globs. A change is
// not delivered immediately: it starts (or restarts) a per-path debounce
// timer, and only fires once the path has been quiet for DebounceInterval.
type FileWatcher struct {
	Root             string
	ScanInterval     time.Duration
	DebounceInterval time.Duration

	globs   globSet
	handler Handler

	mu     sync.Mutex
	known  map[string]fileState
	timers map[string]*time.Timer

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds a FileWatcher rooted at root.
func New(root string, includePatterns, excludePatterns []string, scanInterval, debounceInterval time.Duration, handler Handler) *FileWatcher {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}
	if debounceInterval <= 0 {
		debounceInterval = 2 * time.Second
	}
	return &FileWatcher{
		Root:             root,
		ScanInterval:     scanInterval,
		DebounceInterval: debounceInterval,
		globs:            newGlobSet(includePatterns, excludePatterns),
		handler:          handler,
		known:            make(map[string]fileState),
		timers:           make(map[string]*time.Timer),
		stopChan:         make(chan struct{}),
	}
}

// Start launches the scan loop. It returns immediately; the loop runs in a
// background goroutine until Stop is called or ctx is canceled.
func (w *FileWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.scanLoop(ctx)
}

// UpdateGlobs swaps in a new include/exclude pattern set, effective on the
// watcher's next scan. Safe to call while the watcher is running.
func (w *FileWatcher) UpdateGlobs(includePatterns, excludePatterns []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.globs = newGlobSet(includePatterns, excludePatterns)
}

// currentGlobs returns the active glob set under the watcher's mutex, since
// UpdateGlobs can swap it concurrently with an in-flight scan.
func (w *FileWatcher) currentGlobs() globSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.globs
}

// Stop cancels every pending debounce timer and waits for the scan loop to
// exit. No timer delivers after Stop returns.
func (w *FileWatcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()

	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
}

func (w *FileWatcher) scanLoop(ctx context.Context) {
	defer w.wg.Done()

	// Scan once immediately so a cold start doesn't wait a full interval.
	w.scan(ctx)

	ticker := time.NewTicker(w.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *FileWatcher) scan(ctx context.Context) {
	seen := make(map[string]bool)
	globs := w.currentGlobs()

	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("scan: stat failed, skipping", logfields.Path(path), logfields.Error(err))
			return nil
		}
		if d.IsDir() {
			// Directories are pruned by the exclude patterns only; include
			// patterns name manifest files and are applied to files below.
			if path != w.Root && !(globSet{exclude: globs.exclude}).matches(w.Root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		eco, ok := ecosystem.FromFilename(d.Name())
		if !ok {
			return nil
		}
		if !globs.matches(w.Root, path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan: stat failed, skipping", logfields.Path(path), logfields.Error(err))
			return nil
		}
		seen[path] = true
		w.noteScanned(ctx, path, eco, info.ModTime(), info.Size())
		return nil
	})
	if err != nil {
		slog.Warn("scan: walk failed", logfields.Path(w.Root), logfields.Error(err))
	}

	w.noteRemoved(ctx, seen)
}

func (w *FileWatcher) noteScanned(ctx context.Context, path string, eco ecosystem.Ecosystem, modTime time.Time, size int64) {
	w.mu.Lock()
	prev, existed := w.known[path]
	changed := !existed || !prev.modTime.Equal(modTime) || prev.size != size
	if changed {
		// Record the new state immediately so a quiet file isn't seen as
		// "changed" again on the next scan; only a genuinely new write
		// before the debounce timer fires should push the timer out.
		w.known[path] = fileState{modTime: modTime, size: size}
	}
	w.mu.Unlock()

	if !changed {
		return
	}
	kind := EventModified
	if !existed {
		kind = EventCreated
	}
	w.scheduleDebounced(ctx, path, eco, kind)
}

func (w *FileWatcher) noteRemoved(ctx context.Context, seen map[string]bool) {
	w.mu.Lock()
	var removed []string
	for path := range w.known {
		if !seen[path] {
			removed = append(removed, path)
			delete(w.known, path)
		}
	}
	w.mu.Unlock()

	for _, path := range removed {
		eco, ok := ecosystem.FromFilename(filepath.Base(path))
		if !ok {
			continue
		}
		w.scheduleDebounced(ctx, path, eco, EventRemoved)
	}
}

// scheduleDebounced (re)starts path's debounce timer. A burst of N rapid
// changes to the same path collapses into exactly one delivery, fired
// DebounceInterval after the last observed change.
func (w *FileWatcher) scheduleDebounced(ctx context.Context, path string, eco ecosystem.Ecosystem, kind EventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[path]; ok {
		existing.Stop()
	}
	w.timers[path] = time.AfterFunc(w.DebounceInterval, func() {
		w.fire(ctx, path, eco, kind)
	})
}

// fire re-verifies path against the filesystem before delivering: the
// event as originally observed may be stale by the time the debounce
// window elapses. Three things are re-checked rather than assumed from the
// scan that scheduled it: (1) the path still exists (a modify can race a
// delete), (2) it still passes the current include/exclude globs (a
// config hot-reload may have excluded it mid-debounce), (3) its recorded
// state reflects what's on disk *now*, so the next scan compares against
// current reality rather than the state at schedule time.
func (w *FileWatcher) fire(ctx context.Context, path string, eco ecosystem.Ecosystem, kind EventKind) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || os.IsNotExist(err) {
		w.mu.Lock()
		delete(w.known, path)
		w.mu.Unlock()
		w.deliver(ctx, Event{Path: path, Ecosystem: eco, Kind: EventRemoved})
		return
	}

	if !w.currentGlobs().matches(w.Root, path) {
		return
	}

	w.mu.Lock()
	w.known[path] = fileState{modTime: info.ModTime(), size: info.Size()}
	w.mu.Unlock()

	// A delete-then-recreate within the debounce window means the original
	// EventRemoved no longer reflects reality by fire time: the path exists
	// again, so deliver it as a modification instead of a removal.
	if kind == EventRemoved {
		kind = EventModified
	}

	w.deliver(ctx, Event{Path: path, Ecosystem: eco, Kind: kind})
}

func (w *FileWatcher) deliver(ctx context.Context, ev Event) {
	select {
	case <-ctx.Done():
		return
	case <-w.stopChan:
		return
	default:
	}
	w.handler(ctx, ev)
}
