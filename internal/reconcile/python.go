package reconcile

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/riverrun/depwatch/internal/adapter"
	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/semverx"
)

// requirementLineRe splits a cleaned requirements.txt line into a package
// name, an optional "[extra1,extra2]" block (discarded -- extras don't
// affect which version gets installed), and the remaining version
// specifier.
var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)(\[[^\]]*\])?\s*(.*)$`)

// PythonReconciler reconciles a requirements.txt against an installed
// virtualenv (or system interpreter) via pip.
type PythonReconciler struct {
	Adapter adapter.PackageManagerAdapter
	Advisor Advisor
}

// NewPythonReconciler builds a PythonReconciler backed by a real pip
// subprocess adapter.
func NewPythonReconciler(adv Advisor) *PythonReconciler {
	return &PythonReconciler{Adapter: adapter.NewPipAdapter(), Advisor: adv}
}

func (r *PythonReconciler) Ecosystem() ecosystem.Ecosystem { return ecosystem.Python }

func (r *PythonReconciler) Reconcile(ctx context.Context, projectPath, manifestPath string) (Report, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Report{}, fmt.Errorf("read %s: %w", manifestPath, err)
	}

	declared, err := parsePythonRequirements(data)
	if err != nil {
		return Report{}, err
	}

	report := Report{Ecosystem: ecosystem.Python, ProjectPath: projectPath, ManifestPath: manifestPath}
	if len(declared) == 0 {
		notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.Python.String())
		return report, nil
	}

	installed, err := r.Adapter.ListInstalled(ctx, projectPath)
	if err != nil {
		return Report{}, err
	}

	for _, dep := range declared {
		report.Actions = append(report.Actions, r.reconcileOne(ctx, projectPath, dep, installed))
	}

	notifyAdvisor(ctx, r.Advisor, declared, data, ecosystem.Python.String())
	return report, nil
}

func (r *PythonReconciler) reconcileOne(ctx context.Context, projectPath string, dep Declared, installed map[string]string) Action {
	action := Action{Name: dep.Name, DesiredSpec: dep.VersionSpec, Dev: dep.Dev}

	installedVersion, ok := installed[strings.ToLower(dep.Name)]
	switch {
	case !ok:
		action.Kind = ActionInstall
	case dep.VersionSpec != "" && !semverx.Satisfies(ecosystem.Python, installedVersion, dep.VersionSpec):
		action.Kind = ActionUpgrade
	default:
		action.Kind = ActionNoop
		action.Installed = true
		return action
	}

	_, err := r.Adapter.Install(ctx, projectPath, adapter.PackageSpec{Name: dep.Name, VersionSpec: dep.VersionSpec})
	if err != nil {
		action.Kind = ActionFailed
		action.Error = err.Error()
		return action
	}
	action.Installed = true
	return action
}

// parsePythonRequirements parses a requirements.txt body: comments (from the
// first "#") are stripped, blank lines and pip option lines
// (leading "-", e.g. "-r other.txt" or "--extra-index-url ...") are
// skipped, and environment markers after ";" are dropped since depwatch
// reconciles a single target environment, not a marker matrix.
func parsePythonRequirements(data []byte) ([]Declared, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("requirements.txt is not valid UTF-8: %w", depwatcherrors.ErrManifestParse)
	}

	var declared []Declared
	for _, raw := range strings.Split(string(data), "\n") {
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		m := requirementLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		declared = append(declared, Declared{Name: m[1], VersionSpec: strings.TrimSpace(m[3])})
	}

	sort.Slice(declared, func(i, j int) bool { return declared[i].Name < declared[j].Name })
	return declared, nil
}
