package reconcile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/riverrun/depwatch/internal/adapter"
	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/semverx"
)

// RustReconciler reconciles a Cargo.toml's [dependencies] and
// [dev-dependencies] tables against the crate tree via cargo.
type RustReconciler struct {
	Adapter adapter.PackageManagerAdapter
	Advisor Advisor
}

// NewRustReconciler builds a RustReconciler backed by a real cargo adapter.
func NewRustReconciler(adv Advisor) *RustReconciler {
	return &RustReconciler{Adapter: adapter.NewCargoAdapter(), Advisor: adv}
}

func (r *RustReconciler) Ecosystem() ecosystem.Ecosystem { return ecosystem.Rust }

func (r *RustReconciler) Reconcile(ctx context.Context, projectPath, manifestPath string) (Report, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Report{}, fmt.Errorf("read %s: %w", manifestPath, err)
	}

	declared, err := parseCargoToml(data)
	if err != nil {
		return Report{}, err
	}

	report := Report{Ecosystem: ecosystem.Rust, ProjectPath: projectPath, ManifestPath: manifestPath}
	if len(declared) == 0 {
		notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.Rust.String())
		return report, nil
	}

	installed, err := r.Adapter.ListInstalled(ctx, projectPath)
	if err != nil {
		return Report{}, err
	}

	for _, dep := range declared {
		report.Actions = append(report.Actions, r.reconcileOne(ctx, projectPath, dep, installed))
	}

	notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.Rust.String())
	return report, nil
}

func (r *RustReconciler) reconcileOne(ctx context.Context, projectPath string, dep Declared, installed map[string]string) Action {
	action := Action{Name: dep.Name, DesiredSpec: dep.VersionSpec, Dev: dep.Dev}

	installedVersion, ok := installed[dep.Name]
	switch {
	case !ok:
		action.Kind = ActionInstall
	case dep.VersionSpec != "" && !semverx.Satisfies(ecosystem.Rust, installedVersion, dep.VersionSpec):
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

type cargoManifest struct {
	Dependencies    map[string]interface{} `toml:"dependencies"`
	DevDependencies map[string]interface{} `toml:"dev-dependencies"`
}

// parseCargoToml reads [dependencies] and [dev-dependencies]. Cargo allows
// each entry to be either a bare version string or a table with a "version"
// key (plus other keys like "features" or "path" that depwatch ignores --
// path and git dependencies have no version to reconcile against and are
// left untouched).
func parseCargoToml(data []byte) ([]Declared, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("Cargo.toml is not valid UTF-8: %w", depwatcherrors.ErrManifestParse)
	}

	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse Cargo.toml: %w: %w", depwatcherrors.ErrManifestParse, err)
	}

	declared := make([]Declared, 0, len(manifest.Dependencies)+len(manifest.DevDependencies))
	declared = append(declared, extractCargoDeps(manifest.Dependencies, false)...)
	declared = append(declared, extractCargoDeps(manifest.DevDependencies, true)...)
	sort.Slice(declared, func(i, j int) bool { return declared[i].Name < declared[j].Name })
	return declared, nil
}

func extractCargoDeps(deps map[string]interface{}, dev bool) []Declared {
	declared := make([]Declared, 0, len(deps))
	for name, raw := range deps {
		dep := Declared{Name: name, Dev: dev}
		switch v := raw.(type) {
		case string:
			dep.VersionSpec = v
		case map[string]interface{}:
			if spec, ok := v["version"].(string); ok {
				dep.VersionSpec = spec
			} else {
				// path/git dependency with no version: nothing to reconcile.
				continue
			}
		default:
			continue
		}
		declared = append(declared, dep)
	}
	return declared
}
