// Package workspace resolves the root directory depwatch watches when the
// configuration doesn't pin one explicitly.
package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// Resolve returns configuredRoot if non-nil, otherwise auto-detects the
// workspace root by walking up from configDir to the first VCS directory.
// If no VCS root is found, configDir itself is the fallback.
func Resolve(configuredRoot *string, configDir string) (string, error) {
	if configuredRoot != nil && *configuredRoot != "" {
		abs, err := filepath.Abs(*configuredRoot)
		if err != nil {
			return "", fmt.Errorf("resolve configured workspace_root %q: %w", *configuredRoot, err)
		}
		return abs, nil
	}
	return DetectVCSRoot(configDir)
}

// DetectVCSRoot walks up from start looking for a .git directory via
// go-git's repository detection. If none is found, start itself (absolute)
// is returned: a config file with no enclosing VCS repo still has a
// perfectly usable root, it's just itself.
func DetectVCSRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", start, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return abs, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return abs, nil
	}
	return wt.Filesystem.Root(), nil
}
