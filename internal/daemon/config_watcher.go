package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/riverrun/depwatch/internal/config"
	"github.com/riverrun/depwatch/internal/logfields"
)

// ConfigWatcher hot-reloads file_patterns and ignore_patterns from the
// config file without a daemon restart. workspace_root and watchdog.* are
// read once at startup only: changing either requires a restart, since the
// workspace root picks which tree gets scanned at all and the watchdog
// settings belong to a process this one isn't.
type ConfigWatcher struct {
	configPath   string
	daemon       *Daemon
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher builds a ConfigWatcher for configPath.
func NewConfigWatcher(configPath string, d *Daemon) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath:   absPath,
		daemon:       d,
		watcher:      w,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start watches the config file's containing directory (more reliable
// across editors that replace-on-write than watching the file itself).
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	slog.Info("starting configuration watcher", logfields.Path(cw.configPath))
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop tears down the underlying fsnotify watcher and its goroutines.
func (cw *ConfigWatcher) Stop(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Warn("error closing config watcher", logfields.Error(err))
	}
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write,
				event.Op&fsnotify.Create == fsnotify.Create,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				cw.triggerReload()
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				slog.Warn("config file removed, keeping last known configuration", logfields.Path(event.Name))
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(ctx); err != nil {
					slog.Warn("config reload failed", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("reloading configuration", logfields.Path(cw.configPath))

	newCfg, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("load new configuration: %w", err)
	}

	current := cw.daemon.GetConfig()
	if err := validateConfigChange(current, newCfg); err != nil {
		return fmt.Errorf("validate configuration change: %w", err)
	}

	if err := cw.daemon.ReloadConfig(ctx, newCfg); err != nil {
		return fmt.Errorf("apply new configuration: %w", err)
	}
	slog.Info("configuration reloaded")
	return nil
}

// validateConfigChange rejects nothing outright -- every field in newCfg is
// still applied to the in-memory config -- but warns loudly when a field
// that only takes effect at process start has changed, so an operator
// watching logs knows a restart is needed to pick it up.
func validateConfigChange(current, next config.Config) error {
	if rootChanged(current.WorkspaceRoot, next.WorkspaceRoot) {
		slog.Warn("workspace_root changed in config file; restart the daemon to apply it")
	}
	if current.Watchdog != next.Watchdog {
		slog.Warn("watchdog settings changed in config file; restart the supervisor to apply them")
	}
	return nil
}

func rootChanged(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return *a != *b
	}
}
