package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.FilePatterns) == 0 {
		t.Fatalf("expected default file patterns to be populated")
	}
	if cfg.WorkspaceRoot != nil {
		t.Fatalf("expected nil workspace root by default, got %v", *cfg.WorkspaceRoot)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written, stat failed: %v", err)
	}
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	root := "/srv/myproject"

	written := Config{
		FilePatterns:   []string{"**/requirements.txt"},
		IgnorePatterns: []string{"**/.venv/**"},
		Watchdog:       WatchdogConfig{CheckIntervalSeconds: 20, HeartbeatIntervalSeconds: 7},
		WorkspaceRoot:  &root,
	}
	if err := Save(path, written); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Watchdog.CheckIntervalSeconds != 20 || got.Watchdog.HeartbeatIntervalSeconds != 7 {
		t.Fatalf("unexpected watchdog config: %+v", got.Watchdog)
	}
	if got.WorkspaceRoot == nil || *got.WorkspaceRoot != root {
		t.Fatalf("expected workspace root %q, got %v", root, got.WorkspaceRoot)
	}
}

func TestApplyDefaultsFillsZeroWatchdogIntervals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"file_patterns":["**/package.json"]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Watchdog.CheckIntervalSeconds != 10 || cfg.Watchdog.HeartbeatIntervalSeconds != 5 {
		t.Fatalf("expected default watchdog intervals, got %+v", cfg.Watchdog)
	}
	if cfg.ScanIntervalSeconds != 2 || cfg.DebounceSeconds != 1 || cfg.TaskQueueWorkers != 5 {
		t.Fatalf("expected default watcher/queue settings, got scan=%d debounce=%d workers=%d",
			cfg.ScanIntervalSeconds, cfg.DebounceSeconds, cfg.TaskQueueWorkers)
	}
}

func TestApplyDefaultsFillsZeroWatcherAndQueueSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"scan_interval":7,"task_queue_workers":3}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScanIntervalSeconds != 7 {
		t.Fatalf("expected configured scan interval 7, got %d", cfg.ScanIntervalSeconds)
	}
	if cfg.TaskQueueWorkers != 3 {
		t.Fatalf("expected configured worker count 3, got %d", cfg.TaskQueueWorkers)
	}
	if cfg.DebounceSeconds != 1 {
		t.Fatalf("expected default debounce seconds 1, got %d", cfg.DebounceSeconds)
	}
}

func TestSaveProducesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := Save(path, defaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if _, ok := raw["file_patterns"]; !ok {
		t.Fatalf("expected file_patterns key in written config")
	}
}
