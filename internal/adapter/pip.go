package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
)

// venvCandidates is the order depwatch auto-detects a project's virtualenv
// in, falling back to the system interpreter's pip if none is found.
var venvCandidates = []string{".venv", "venv", "env", ".env"}

// PipAdapter drives pip for Python projects.
type PipAdapter struct {
	runner Runner
	locks  *pathLocks
}

// NewPipAdapter builds a PipAdapter backed by real subprocesses.
func NewPipAdapter() *PipAdapter {
	return &PipAdapter{runner: ExecRunner{}, locks: newPathLocks()}
}

func (a *PipAdapter) Name() string { return "pip" }

// pipBin resolves which pip executable to invoke, preferring (in order) a
// Poetry-managed virtualenv reported by `poetry env info --path`, then the
// first venv candidate directory that contains a bin/pip, else the system
// "pip" on PATH.
func (a *PipAdapter) pipBin(ctx context.Context, projectPath string) string {
	if root, ok := a.poetryVenvRoot(ctx, projectPath); ok {
		bin := filepath.Join(root, "bin", "pip")
		if info, err := os.Stat(bin); err == nil && !info.IsDir() {
			return bin
		}
	}
	for _, candidate := range venvCandidates {
		bin := filepath.Join(projectPath, candidate, "bin", "pip")
		if info, err := os.Stat(bin); err == nil && !info.IsDir() {
			return bin
		}
	}
	return "pip"
}

// poetryVenvRoot asks Poetry for the virtualenv it manages for projectPath.
// Absent a pyproject.toml using Poetry, or with Poetry not installed, the
// subprocess fails and this is treated as "no Poetry venv", not an error.
func (a *PipAdapter) poetryVenvRoot(ctx context.Context, projectPath string) (string, bool) {
	if _, err := os.Stat(filepath.Join(projectPath, "pyproject.toml")); err != nil {
		return "", false
	}
	output, exitCode, err := a.runner.Run(ctx, projectPath, "poetry", "env", "info", "--path")
	if err != nil || exitCode != 0 {
		return "", false
	}
	root := strings.TrimSpace(output)
	if root == "" {
		return "", false
	}
	return root, true
}

func (a *PipAdapter) Install(ctx context.Context, projectPath string, pkg PackageSpec) (Result, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	target := pkg.Name + pkg.VersionSpec
	args := []string{"install", target, "--no-input"}
	bin := a.pipBin(ctx, projectPath)

	output, exitCode, err := a.runner.Run(ctx, projectPath, bin, args...)
	res := Result{Command: bin + " " + strings.Join(args, " "), Output: output, ExitCode: exitCode}
	if err != nil {
		return res, fmt.Errorf("invoke pip install %s: %w", target, err)
	}
	if exitCode != 0 {
		return res, fmt.Errorf("pip install %s exited %d: %w", target, exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return res, nil
}

func (a *PipAdapter) ListInstalled(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	bin := a.pipBin(ctx, projectPath)
	output, exitCode, err := a.runner.Run(ctx, projectPath, bin, "list", "--format=freeze")
	if err != nil {
		return nil, fmt.Errorf("invoke pip list: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("pip list exited %d: %w", exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return parseFreeze(output), nil
}

func (a *PipAdapter) Outdated(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	bin := a.pipBin(ctx, projectPath)
	output, exitCode, err := a.runner.Run(ctx, projectPath, bin, "list", "--outdated", "--format=freeze")
	if err != nil {
		return nil, fmt.Errorf("invoke pip list --outdated: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("pip list --outdated exited %d: %w", exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return parseFreeze(output), nil
}

// parseFreeze parses `pip list --format=freeze` output: one "name==version"
// per line, lowercased for case-insensitive package name comparison.
func parseFreeze(output string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "==", 2)
		if len(parts) != 2 {
			continue
		}
		result[strings.ToLower(parts[0])] = parts[1]
	}
	return result
}
