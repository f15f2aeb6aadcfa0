package semverx

import "strings"

type jsOp int

const (
	jsExact jsOp = iota
	jsCaret
	jsTilde
	jsGt
	jsGte
	jsLt
	jsLte
)

// JSSpec is a parsed npm-style version specifier: an exact version, a
// caret (^) or tilde (~) range, or a single comparator (>, >=, <, <=).
type JSSpec struct {
	op      jsOp
	version Version
}

// ParseJSSpec parses an npm-style dependency range. Rust's Cargo.toml
// string-form requirements use the same caret/tilde/comparator grammar and
// share this parser.
func ParseJSSpec(spec string) JSSpec {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(spec, "^"):
		return JSSpec{op: jsCaret, version: ParseVersion(spec[1:])}
	case strings.HasPrefix(spec, "~"):
		return JSSpec{op: jsTilde, version: ParseVersion(spec[1:])}
	case strings.HasPrefix(spec, ">="):
		return JSSpec{op: jsGte, version: ParseVersion(spec[2:])}
	case strings.HasPrefix(spec, "<="):
		return JSSpec{op: jsLte, version: ParseVersion(spec[2:])}
	case strings.HasPrefix(spec, ">"):
		return JSSpec{op: jsGt, version: ParseVersion(spec[1:])}
	case strings.HasPrefix(spec, "<"):
		return JSSpec{op: jsLt, version: ParseVersion(spec[1:])}
	default:
		return JSSpec{op: jsExact, version: ParseVersion(spec)}
	}
}

// Satisfies reports whether the installed version satisfies this range.
func (s JSSpec) Satisfies(installed Version) bool {
	switch s.op {
	case jsExact:
		return installed.Compare(s.version) == 0
	case jsGt:
		return installed.Compare(s.version) > 0
	case jsGte:
		return installed.Compare(s.version) >= 0
	case jsLt:
		return installed.Compare(s.version) < 0
	case jsLte:
		return installed.Compare(s.version) <= 0
	case jsCaret:
		return caretSatisfies(s.version, installed)
	case jsTilde:
		return tildeSatisfies(s.version, installed)
	default:
		return false
	}
}

// caretSatisfies implements npm's ^ rule: compatible changes within the
// first non-zero component from the left. ^1.2.3 allows >=1.2.3,<2.0.0;
// ^0.2.3 allows >=0.2.3,<0.3.0; ^0.0.3 allows only 0.0.3 itself.
func caretSatisfies(spec, installed Version) bool {
	if installed.Compare(spec) < 0 {
		return false
	}
	major, minor, patch := spec.Component(0), spec.Component(1), spec.Component(2)
	switch {
	case major > 0:
		return installed.Component(0) == major
	case minor > 0:
		return installed.Component(0) == major && installed.Component(1) == minor
	case patch > 0:
		return installed.Component(0) == major && installed.Component(1) == minor && installed.Component(2) == patch
	default:
		return installed.Compare(spec) == 0
	}
}

// tildeSatisfies implements npm's ~ rule: patch-level changes only.
// ~1.2.3 allows >=1.2.3,<1.3.0.
func tildeSatisfies(spec, installed Version) bool {
	if installed.Compare(spec) < 0 {
		return false
	}
	return installed.Component(0) == spec.Component(0) && installed.Component(1) == spec.Component(1)
}
