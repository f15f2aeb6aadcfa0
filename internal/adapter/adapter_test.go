package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
)

type fakeRunner struct {
	calls   []call
	output  string
	exit    int
	failErr error
}

type call struct {
	dir  string
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, int, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	if f.failErr != nil {
		return "", -1, f.failErr
	}
	return f.output, f.exit, nil
}

func TestPipAdapterInstallBuildsExpectedArgs(t *testing.T) {
	fr := &fakeRunner{output: "", exit: 0}
	a := &PipAdapter{runner: fr, locks: newPathLocks()}

	_, err := a.Install(t.Context(), "/repo", PackageSpec{Name: "requests", VersionSpec: ">=2.31.0"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fr.calls))
	}
	got := fr.calls[0]
	if got.name != "pip" {
		t.Fatalf("expected pip binary, got %s", got.name)
	}
	want := []string{"install", "requests>=2.31.0", "--no-input"}
	if strings.Join(got.args, " ") != strings.Join(want, " ") {
		t.Fatalf("expected args %v, got %v", want, got.args)
	}
}

func TestPipAdapterPrefersVenvBinary(t *testing.T) {
	root := t.TempDir()
	venvBin := filepath.Join(root, ".venv", "bin")
	if err := os.MkdirAll(venvBin, 0o755); err != nil {
		t.Fatalf("mkdir venv bin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(venvBin, "pip"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake pip: %v", err)
	}

	fr := &fakeRunner{exit: 0}
	a := &PipAdapter{runner: fr, locks: newPathLocks()}
	if _, err := a.Install(t.Context(), root, PackageSpec{Name: "flask"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if fr.calls[0].name != filepath.Join(root, ".venv", "bin", "pip") {
		t.Fatalf("expected venv pip binary, got %s", fr.calls[0].name)
	}
}

func TestPipAdapterNonZeroExitIsAdapterFailed(t *testing.T) {
	fr := &fakeRunner{exit: 1, output: "ERROR: No matching distribution"}
	a := &PipAdapter{runner: fr, locks: newPathLocks()}

	_, err := a.Install(t.Context(), "/repo", PackageSpec{Name: "doesnotexist"})
	if !errors.Is(err, depwatcherrors.ErrAdapterFailed) {
		t.Fatalf("expected ErrAdapterFailed, got %v", err)
	}
}

func TestPipAdapterParseFreeze(t *testing.T) {
	out := "requests==2.31.0\n# comment\nflask==3.0.0\n\n"
	got := parseFreeze(out)
	if got["requests"] != "2.31.0" || got["flask"] != "3.0.0" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestNodeAdapterFullInstallRunsBareInstall(t *testing.T) {
	root := t.TempDir()
	fr := &fakeRunner{exit: 0}
	a := &NodeAdapter{runner: fr, locks: newPathLocks()}

	if _, err := a.FullInstall(t.Context(), root); err != nil {
		t.Fatalf("full install: %v", err)
	}
	if fr.calls[0].name != "npm" || strings.Join(fr.calls[0].args, " ") != "install" {
		t.Fatalf("expected bare npm install, got %s %v", fr.calls[0].name, fr.calls[0].args)
	}
}

func TestNodeAdapterInstallAlwaysTargetsOnePackage(t *testing.T) {
	root := t.TempDir()
	fr := &fakeRunner{exit: 0}
	a := &NodeAdapter{runner: fr, locks: newPathLocks()}

	// Install always names the package, even with node_modules absent --
	// the whole-manifest shortcut lives in FullInstall, called by the
	// reconciler once per pass rather than per dependency.
	if _, err := a.Install(t.Context(), root, PackageSpec{Name: "lodash", VersionSpec: "^4.17.21"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if fr.calls[0].name != "npm" || strings.Join(fr.calls[0].args, " ") != "install lodash@^4.17.21 --save" {
		t.Fatalf("expected targeted npm install, got %s %v", fr.calls[0].name, fr.calls[0].args)
	}
}

func TestNodeAdapterPerPackageInstallSelectsYarn(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatalf("mkdir node_modules: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "yarn.lock"), []byte(""), 0o644); err != nil {
		t.Fatalf("write yarn.lock: %v", err)
	}

	fr := &fakeRunner{exit: 0}
	a := &NodeAdapter{runner: fr, locks: newPathLocks()}

	if _, err := a.Install(t.Context(), root, PackageSpec{Name: "lodash", VersionSpec: "^4.17.21", Dev: true}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if fr.calls[0].name != "yarn" {
		t.Fatalf("expected yarn, got %s", fr.calls[0].name)
	}
	want := "add lodash@^4.17.21 --dev"
	if strings.Join(fr.calls[0].args, " ") != want {
		t.Fatalf("expected args %q, got %q", want, strings.Join(fr.calls[0].args, " "))
	}
}

func TestNodeAdapterListInstalledReadsNodeModules(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "node_modules", "lodash")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte(`{"name":"lodash","version":"4.17.21"}`), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}

	a := NewNodeAdapter()
	got, err := a.ListInstalled(t.Context(), root)
	if err != nil {
		t.Fatalf("list installed: %v", err)
	}
	if got["lodash"] != "4.17.21" {
		t.Fatalf("expected lodash 4.17.21, got %+v", got)
	}
}

func TestCargoAdapterInstallBuildsExpectedArgs(t *testing.T) {
	fr := &fakeRunner{exit: 0}
	a := &CargoAdapter{runner: fr, locks: newPathLocks()}

	if _, err := a.Install(t.Context(), "/svc", PackageSpec{Name: "serde", VersionSpec: "1.0", Dev: true}); err != nil {
		t.Fatalf("install: %v", err)
	}
	want := "add serde@1.0 --dev"
	if strings.Join(fr.calls[0].args, " ") != want {
		t.Fatalf("expected args %q, got %q", want, strings.Join(fr.calls[0].args, " "))
	}
}

func TestCargoAdapterParseTree(t *testing.T) {
	out := "serde v1.0.193\ntokio v1.35.0 (proc-macro)\n"
	got := parseCargoTree(out)
	if got["serde"] != "1.0.193" || got["tokio"] != "1.35.0" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestPathLocksSerializesPerProject(t *testing.T) {
	locks := newPathLocks()
	unlock := locks.lock("/repo")

	done := make(chan struct{})
	go func() {
		unlock2 := locks.lock("/repo")
		unlock2()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("expected second lock to block while first is held")
	default:
	}
	unlock()
	<-done
}
