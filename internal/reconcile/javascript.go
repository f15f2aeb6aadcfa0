package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/riverrun/depwatch/internal/adapter"
	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/semverx"
)

// fullInstaller is implemented by adapters that can resolve an entire
// manifest in one invocation instead of one package at a time.
type fullInstaller interface {
	FullInstall(ctx context.Context, projectPath string) (adapter.Result, error)
}

// JavaScriptReconciler reconciles a package.json's dependencies and
// devDependencies against node_modules via npm, yarn, or pnpm.
type JavaScriptReconciler struct {
	Adapter adapter.PackageManagerAdapter
	Advisor Advisor
}

// NewJavaScriptReconciler builds a JavaScriptReconciler backed by a real
// node package-manager adapter.
func NewJavaScriptReconciler(adv Advisor) *JavaScriptReconciler {
	return &JavaScriptReconciler{Adapter: adapter.NewNodeAdapter(), Advisor: adv}
}

func (r *JavaScriptReconciler) Ecosystem() ecosystem.Ecosystem { return ecosystem.JavaScript }

func (r *JavaScriptReconciler) Reconcile(ctx context.Context, projectPath, manifestPath string) (Report, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Report{}, fmt.Errorf("read %s: %w", manifestPath, err)
	}

	declared, err := parsePackageJSON(data)
	if err != nil {
		return Report{}, err
	}

	report := Report{Ecosystem: ecosystem.JavaScript, ProjectPath: projectPath, ManifestPath: manifestPath}
	if len(declared) == 0 {
		notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.JavaScript.String())
		return report, nil
	}

	// node_modules absent: resolve the whole manifest in one pass instead
	// of diffing and installing each declared dependency individually.
	if !fileExists(filepath.Join(projectPath, "node_modules")) {
		report.Actions = r.fullInstallAll(ctx, projectPath, declared)
		notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.JavaScript.String())
		return report, nil
	}

	installed, err := r.Adapter.ListInstalled(ctx, projectPath)
	if err != nil {
		return Report{}, err
	}

	for _, dep := range declared {
		report.Actions = append(report.Actions, r.reconcileOne(ctx, projectPath, dep, installed))
	}

	notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.JavaScript.String())
	return report, nil
}

// fullInstallAll runs a single full install covering every declared
// dependency at once. If the adapter doesn't support a batched install, it
// falls back to reconciling each dependency individually against an empty
// installed set.
func (r *JavaScriptReconciler) fullInstallAll(ctx context.Context, projectPath string, declared []Declared) []Action {
	actions := make([]Action, 0, len(declared))

	fi, ok := r.Adapter.(fullInstaller)
	if !ok {
		for _, dep := range declared {
			actions = append(actions, r.reconcileOne(ctx, projectPath, dep, nil))
		}
		return actions
	}

	_, err := fi.FullInstall(ctx, projectPath)
	for _, dep := range declared {
		action := Action{Name: dep.Name, DesiredSpec: dep.VersionSpec, Kind: ActionInstall, Dev: dep.Dev, Installed: err == nil}
		if err != nil {
			action.Kind = ActionFailed
			action.Error = err.Error()
		}
		actions = append(actions, action)
	}
	return actions
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (r *JavaScriptReconciler) reconcileOne(ctx context.Context, projectPath string, dep Declared, installed map[string]string) Action {
	action := Action{Name: dep.Name, DesiredSpec: dep.VersionSpec, Dev: dep.Dev}

	installedVersion, ok := installed[dep.Name]
	switch {
	case !ok:
		action.Kind = ActionInstall
	case dep.VersionSpec != "" && !semverx.Satisfies(ecosystem.JavaScript, installedVersion, dep.VersionSpec):
		action.Kind = ActionUpgrade
	default:
		action.Kind = ActionNoop
		action.Installed = true
		return action
	}

	_, err := r.Adapter.Install(ctx, projectPath, adapter.PackageSpec{Name: dep.Name, VersionSpec: dep.VersionSpec, Dev: dep.Dev})
	if err != nil {
		action.Kind = ActionFailed
		action.Error = err.Error()
		return action
	}
	action.Installed = true
	return action
}

// parsePackageJSON reads dependencies and devDependencies; package.json's
// own wire format is already JSON, so no bespoke grammar is needed the way
// requirements.txt and Cargo.toml require.
func parsePackageJSON(data []byte) ([]Declared, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("package.json is not valid UTF-8: %w", depwatcherrors.ErrManifestParse)
	}

	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse package.json: %w: %w", depwatcherrors.ErrManifestParse, err)
	}

	declared := make([]Declared, 0, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name, spec := range manifest.Dependencies {
		declared = append(declared, Declared{Name: name, VersionSpec: spec})
	}
	for name, spec := range manifest.DevDependencies {
		declared = append(declared, Declared{Name: name, VersionSpec: spec, Dev: true})
	}
	sort.Slice(declared, func(i, j int) bool { return declared[i].Name < declared[j].Name })
	return declared, nil
}
