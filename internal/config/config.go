// Package config loads and persists depwatch's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// defaultFilePatterns and defaultIgnorePatterns seed a freshly written
// config file: the three manifest basenames, and the dependency
// directories/VCS metadata no reconciler should ever watch inside.
var (
	defaultFilePatterns   = []string{"**/requirements.txt", "**/package.json", "**/Cargo.toml"}
	defaultIgnorePatterns = []string{"**/node_modules/**", "**/.venv/**", "**/venv/**", "**/target/**", "**/.git/**"}
)

// LLMConfig names the advisor-adjacent model depwatch's own
// process points at. depwatch never loads or runs this model itself --
// the fields are passed through to whatever analyzes dependencies on the
// other end of the advisor interface.
type LLMConfig struct {
	ModelPath   string `json:"model_path,omitempty"`
	Quantization string `json:"quantization,omitempty"`
}

// WatchdogConfig configures the supervisor.
type WatchdogConfig struct {
	CheckIntervalSeconds     int `json:"check_interval"`
	HeartbeatIntervalSeconds int `json:"heartbeat_interval"`
}

// Config is the full recognized key set.
type Config struct {
	FilePatterns   []string       `json:"file_patterns"`
	IgnorePatterns []string       `json:"ignore_patterns"`
	LLM            LLMConfig      `json:"llm"`
	Watchdog       WatchdogConfig `json:"watchdog"`
	// WorkspaceRoot is nil to mean "auto-detect by walking up to the first
	// VCS directory" -- see internal/workspace.
	WorkspaceRoot *string `json:"workspace_root"`

	// ScanIntervalSeconds and DebounceSeconds configure the FileWatcher's
	// poll cadence and per-path debounce window.
	ScanIntervalSeconds int `json:"scan_interval,omitempty"`
	DebounceSeconds     int `json:"debounce_seconds,omitempty"`
	// TaskQueueWorkers bounds the TaskQueue's in-flight concurrency.
	TaskQueueWorkers int `json:"task_queue_workers,omitempty"`

	// NATSURL and AdvisorReconnectSeconds are ambient additions: the
	// advisor's connection target and reconnect backoff.
	NATSURL                 string `json:"nats_url,omitempty"`
	AdvisorReconnectSeconds int    `json:"advisor_reconnect_interval,omitempty"`
}

// defaultConfig returns the configuration written when no file exists yet.
func defaultConfig() Config {
	return Config{
		FilePatterns:   append([]string(nil), defaultFilePatterns...),
		IgnorePatterns: append([]string(nil), defaultIgnorePatterns...),
		Watchdog: WatchdogConfig{
			CheckIntervalSeconds:     10,
			HeartbeatIntervalSeconds: 5,
		},
		ScanIntervalSeconds:     2,
		DebounceSeconds:         1,
		TaskQueueWorkers:        5,
		NATSURL:                 "nats://127.0.0.1:4222",
		AdvisorReconnectSeconds: 300,
	}
}

// Load reads configPath, loading a sibling .env file first (if present) via
// godotenv into the process environment. If configPath doesn't exist, a
// default configuration is written there and returned.
func Load(configPath string) (Config, error) {
	// no .env file is the common case, not an error
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := Save(configPath, cfg); err != nil {
			return Config{}, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields a freshly hand-edited config file
// might omit, applied the same way post-unmarshal regardless of which
// fields the file actually specified.
func applyDefaults(cfg *Config) {
	if cfg.Watchdog.CheckIntervalSeconds <= 0 {
		cfg.Watchdog.CheckIntervalSeconds = 10
	}
	if cfg.Watchdog.HeartbeatIntervalSeconds <= 0 {
		cfg.Watchdog.HeartbeatIntervalSeconds = 5
	}
	if cfg.ScanIntervalSeconds <= 0 {
		cfg.ScanIntervalSeconds = 2
	}
	if cfg.DebounceSeconds <= 0 {
		cfg.DebounceSeconds = 1
	}
	if cfg.TaskQueueWorkers <= 0 {
		cfg.TaskQueueWorkers = 5
	}
	if cfg.AdvisorReconnectSeconds <= 0 {
		cfg.AdvisorReconnectSeconds = 300
	}
}

// Save writes cfg to configPath as indented JSON.
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}
	return nil
}
