package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
)

// NodeAdapter drives npm, yarn, or pnpm for JavaScript projects, selected
// by which lockfile is present.
type NodeAdapter struct {
	runner Runner
	locks  *pathLocks
}

// NewNodeAdapter builds a NodeAdapter backed by real subprocesses.
func NewNodeAdapter() *NodeAdapter {
	return &NodeAdapter{runner: ExecRunner{}, locks: newPathLocks()}
}

func (a *NodeAdapter) Name() string { return "node" }

// tool selects the package manager by lockfile presence: yarn.lock takes
// priority over pnpm-lock.yaml, and npm is the default when neither is
// present.
func (a *NodeAdapter) tool(projectPath string) string {
	if fileExists(filepath.Join(projectPath, "yarn.lock")) {
		return "yarn"
	}
	if fileExists(filepath.Join(projectPath, "pnpm-lock.yaml")) {
		return "pnpm"
	}
	return "npm"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FullInstall runs a single whole-manifest install, the entry point a
// caller should use instead of Install when node_modules is absent: one
// invocation lets the package manager resolve the entire dependency set at
// once, rather than installing packages one at a time into a fresh tree.
func (a *NodeAdapter) FullInstall(ctx context.Context, projectPath string) (Result, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()
	return a.run(ctx, projectPath, a.tool(projectPath), []string{"install"})
}

func (a *NodeAdapter) Install(ctx context.Context, projectPath string, pkg PackageSpec) (Result, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	tool := a.tool(projectPath)
	target := pkg.Name
	if pkg.VersionSpec != "" {
		target = pkg.Name + "@" + pkg.VersionSpec
	}

	var args []string
	switch tool {
	case "yarn":
		args = []string{"add", target}
		if pkg.Dev {
			args = append(args, "--dev")
		}
	case "pnpm":
		args = []string{"add", target}
		if pkg.Dev {
			args = append(args, "--save-dev")
		}
	default: // npm
		args = []string{"install", target}
		if pkg.Dev {
			args = append(args, "--save-dev")
		} else {
			args = append(args, "--save")
		}
	}
	return a.run(ctx, projectPath, tool, args)
}

func (a *NodeAdapter) run(ctx context.Context, projectPath, tool string, args []string) (Result, error) {
	output, exitCode, err := a.runner.Run(ctx, projectPath, tool, args...)
	res := Result{Command: tool + " " + strings.Join(args, " "), Output: output, ExitCode: exitCode}
	if err != nil {
		return res, fmt.Errorf("invoke %s: %w", tool, err)
	}
	if exitCode != 0 {
		return res, fmt.Errorf("%s %s exited %d: %w", tool, strings.Join(args, " "), exitCode, depwatcherrors.ErrAdapterFailed)
	}
	return res, nil
}

func (a *NodeAdapter) ListInstalled(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()
	return readNodeModulesVersions(projectPath)
}

// readNodeModulesVersions reads the "version" field out of every
// node_modules/<package>/package.json, which is what's actually installed
// regardless of what the manifest or a lockfile claims.
func readNodeModulesVersions(projectPath string) (map[string]string, error) {
	result := make(map[string]string)
	nodeModules := filepath.Join(projectPath, "node_modules")
	entries, err := os.ReadDir(nodeModules)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node_modules: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "@") {
			// scoped packages: node_modules/@scope/name/package.json
			scoped, err := os.ReadDir(filepath.Join(nodeModules, name))
			if err != nil {
				continue
			}
			for _, s := range scoped {
				pkgName := name + "/" + s.Name()
				if v, ok := readPackageVersion(filepath.Join(nodeModules, name, s.Name())); ok {
					result[pkgName] = v
				}
			}
			continue
		}
		if v, ok := readPackageVersion(filepath.Join(nodeModules, name)); ok {
			result[name] = v
		}
	}
	return result, nil
}

func readPackageVersion(pkgDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return "", false
	}
	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", false
	}
	if manifest.Version == "" {
		return "", false
	}
	return manifest.Version, true
}

func (a *NodeAdapter) Outdated(ctx context.Context, projectPath string) (map[string]string, error) {
	unlock := a.locks.lock(projectPath)
	defer unlock()

	tool := a.tool(projectPath)
	output, _, err := a.runner.Run(ctx, projectPath, tool, "outdated", "--json")
	if err != nil {
		return nil, fmt.Errorf("invoke %s outdated: %w", tool, err)
	}
	// npm/yarn/pnpm all exit nonzero when outdated packages exist; that is
	// not itself a failure, so the exit code is ignored here.
	return parseOutdatedJSON(output), nil
}

// parseOutdatedJSON parses the `npm outdated --json` shape:
// {"name": {"current": "...", "wanted": "...", "latest": "..."}}. yarn and
// pnpm's --json output for `outdated` follows the same per-package object
// shape for the fields depwatch cares about.
func parseOutdatedJSON(output string) map[string]string {
	result := make(map[string]string)
	var raw map[string]struct {
		Latest string `json:"latest"`
	}
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return result
	}
	for name, info := range raw {
		if info.Latest != "" {
			result[name] = info.Latest
		}
	}
	return result
}
