package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
)

// CargoAdapter drives cargo for Rust projects.
type CargoAdapter struct {
	runner Runner
	locks  *pathLocks
}

// NewCargoAdapter builds a CargoAdapter backed by real subprocesses.
func NewCargoAdapter() *CargoAdapter {
	return &CargoAdapter{runner: ExecRunner{}, locks: newPathLocks()}
}

func (a *CargoAdapter) Name() string { return "cargo" }

func (a *CargoAdapter) Install(ctx context.Context, projectPath string, pkg PackageSpec) (Result, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	target := pkg.Name
	if pkg.VersionSpec != "" {
		target = pkg.Name + "@" + pkg.VersionSpec
	}
	args := []string{"add", target}
	if pkg.Dev {
		args = append(args, "--dev")
	}

	output, exitCode, err := a.runner.Run(ctx, projectPath, "cargo", args...)
	res := Result{Command: "cargo " + strings.Join(args, " "), Output: output, ExitCode: exitCode}
	if err != nil {
		return res, fmt.Errorf("invoke cargo add %s: %w", target, err)
	}
	if exitCode != 0 {
		return res, fmt.Errorf("cargo add %s exited %d: %w", target, exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return res, nil
}

func (a *CargoAdapter) ListInstalled(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	output, exitCode, err := a.runner.Run(ctx, projectPath, "cargo", "tree", "--depth", "1", "--prefix", "none")
	if err != nil {
		return nil, fmt.Errorf("invoke cargo tree: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("cargo tree exited %d: %w", exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return parseCargoTree(output), nil
}

// parseCargoTree parses `cargo tree --depth 1 --prefix none` lines of the
// form "name vX.Y.Z" (optionally followed by " (proc-macro)" or similar
// annotations, which are ignored). The root crate's own line is included in
// the result; lines with fewer than two fields are skipped.
func parseCargoTree(output string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		version := strings.TrimPrefix(fields[1], "v")
		result[name] = version
	}
	return result
}

func (a *CargoAdapter) Outdated(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	output, _, err := a.runner.Run(ctx, projectPath, "cargo", "outdated", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("invoke cargo outdated: %w", err)
	}
	return parseCargoOutdated(output), nil
}

// parseCargoOutdated parses cargo-outdated's --format json dependencies
// array: [{"name": "...", "latest": "..."}].
func parseCargoOutdated(output string) map[string]string {
	result := make(map[string]string)
	var raw struct {
		Dependencies []struct {
			Name   string `json:"name"`
			Latest string `json:"latest"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return result
	}
	for _, dep := range raw.Dependencies {
		if dep.Latest != "" && dep.Latest != "-" {
			result[dep.Name] = dep.Latest
		}
	}
	return result
}
