// Package reconcile implements the parse -> query installed -> diff ->
// execute -> submit-to-advisor pipeline, one Reconciler per ecosystem.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverrun/depwatch/internal/ecosystem"
	"github.com/riverrun/depwatch/internal/logfields"
)

// Declared is one dependency exactly as written in a manifest.
type Declared struct {
	Name        string
	VersionSpec string
	Dev         bool
}

// ActionKind is what reconciliation decided to do about one declared
// dependency.
type ActionKind string

const (
	ActionNoop    ActionKind = "noop"
	ActionInstall ActionKind = "install"
	ActionUpgrade ActionKind = "upgrade"
	ActionFailed  ActionKind = "failed"
)

// Action records the decision and outcome for one declared dependency.
type Action struct {
	Name        string
	DesiredSpec string
	Kind        ActionKind
	Error       string
	// Dev marks a development-only dependency (JavaScript/Rust manifests
	// only; always false for Python).
	Dev bool
	// Installed reports whether the package is installed after this
	// action: true for a noop that was already satisfied, or an
	// install/upgrade that succeeded; false for a failed action.
	Installed bool
}

// Report summarizes one reconciliation pass over a single manifest.
type Report struct {
	Ecosystem    ecosystem.Ecosystem
	ProjectPath  string
	ManifestPath string
	Actions      []Action
}

// Reconciler brings installed packages in line with one manifest.
type Reconciler interface {
	Ecosystem() ecosystem.Ecosystem
	Reconcile(ctx context.Context, projectPath, manifestPath string) (Report, error)
}

// AdvisorResult is the structured response an Advisor call returns:
// dependencies it thinks are missing from the manifest, available
// updates, known security issues, and cross-package compatibility issues.
// None of these feed back into a reconciliation decision -- they are
// logged for an operator to act on.
type AdvisorResult struct {
	MissingDependencies []string
	Updates             []string
	SecurityIssues      []string
	CompatibilityIssues []string
}

// Empty reports whether every category is empty, so callers can skip
// logging a no-op response.
func (r AdvisorResult) Empty() bool {
	return len(r.MissingDependencies) == 0 && len(r.Updates) == 0 &&
		len(r.SecurityIssues) == 0 && len(r.CompatibilityIssues) == 0
}

// Advisor is the narrow, best-effort external collaborator. A reconciler
// calls it after reconciling, never before and never in a way that can
// change or block the outcome: Non-goals rule out cross-ecosystem
// reasoning feeding back into install decisions.
type Advisor interface {
	Analyze(ctx context.Context, deps []Declared, manifestText, ecosystemTag string) (AdvisorResult, error)
}

// advisorTimeout bounds how long a reconciler waits on the advisor before
// giving up and continuing without it.
const advisorTimeout = 3 * time.Second

// notifyAdvisor calls adv best-effort and only logs the result; any error,
// including adv being nil, is swallowed.
func notifyAdvisor(ctx context.Context, adv Advisor, deps []Declared, manifestText []byte, ecosystemTag string) {
	if adv == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()

	result, err := adv.Analyze(actx, deps, string(manifestText), ecosystemTag)
	if err != nil {
		slog.Debug("advisor call failed, continuing without it", logfields.Ecosystem(ecosystemTag), logfields.Reason(err.Error()))
		return
	}
	if !result.Empty() {
		slog.Info("advisor response",
			logfields.Ecosystem(ecosystemTag),
			"missing_dependencies", result.MissingDependencies,
			"updates", result.Updates,
			"security_issues", result.SecurityIssues,
			"compatibility_issues", result.CompatibilityIssues,
		)
	}
}
