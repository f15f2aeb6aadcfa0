// Package adapter drives each ecosystem's package manager as an external
// subprocess. depwatch never links a package manager's internals; it only
// shells out and parses stdout.
package adapter

import "context"

// PackageSpec is one dependency to act on: the name as written in the
// manifest, its version specifier (may be empty for "any version"), and
// whether it's a development-only dependency.
type PackageSpec struct {
	Name        string
	VersionSpec string
	Dev         bool
}

// Result captures one subprocess invocation, kept for logging and for the
// package record's last_action/last_error fields.
type Result struct {
	Command  string
	Output   string
	ExitCode int
}

// PackageManagerAdapter is the subprocess boundary one ecosystem's
// reconciler talks to.
type PackageManagerAdapter interface {
	// Name identifies the adapter in logs and metrics labels.
	Name() string

	// ListInstalled returns every installed package name mapped to its
	// installed version, for projectPath.
	ListInstalled(ctx context.Context, projectPath string) (map[string]string, error)

	// Install brings pkg to its desired state in projectPath: installs it
	// if absent, or upgrades it if an older version is installed.
	Install(ctx context.Context, projectPath string, pkg PackageSpec) (Result, error)

	// Outdated returns packages with a newer version available, mapped to
	// that available version. Best-effort: some package managers exit
	// nonzero when outdated packages exist, which is not itself a failure.
	Outdated(ctx context.Context, projectPath string) (map[string]string, error)
}
