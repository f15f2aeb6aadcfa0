package semverx

import "strings"

type pythonOp int

const (
	pyEq pythonOp = iota
	pyGe
	pyLt
	pyCompatible // ~=
	pyUnknown    // degrades to exact-string equality
)

// PythonSpec is a parsed requirements.txt version specifier: ==X, >=X, <X,
// or ~=X.Y[.Z]. Anything else degrades to exact-string equality against the
// operand.
type PythonSpec struct {
	op      pythonOp
	operand string
	version Version
}

// ParsePythonSpec parses a PEP 440 subset specifier.
func ParsePythonSpec(spec string) PythonSpec {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(spec, "~="):
		operand := strings.TrimSpace(strings.TrimPrefix(spec, "~="))
		return PythonSpec{op: pyCompatible, operand: operand, version: ParseVersion(operand)}
	case strings.HasPrefix(spec, ">="):
		operand := strings.TrimSpace(strings.TrimPrefix(spec, ">="))
		return PythonSpec{op: pyGe, operand: operand, version: ParseVersion(operand)}
	case strings.HasPrefix(spec, "=="):
		operand := strings.TrimSpace(strings.TrimPrefix(spec, "=="))
		return PythonSpec{op: pyEq, operand: operand, version: ParseVersion(operand)}
	case strings.HasPrefix(spec, "<"):
		operand := strings.TrimSpace(strings.TrimPrefix(spec, "<"))
		return PythonSpec{op: pyLt, operand: operand, version: ParseVersion(operand)}
	default:
		return PythonSpec{op: pyUnknown, operand: spec, version: ParseVersion(spec)}
	}
}

// Satisfies reports whether the installed version satisfies this specifier.
func (s PythonSpec) Satisfies(installed Version) bool {
	switch s.op {
	case pyEq:
		return installed.Compare(s.version) == 0
	case pyGe:
		return installed.Compare(s.version) >= 0
	case pyLt:
		return installed.Compare(s.version) < 0
	case pyCompatible:
		return compatibleRelease(s.version, installed)
	default:
		return installed.String() == s.operand
	}
}

// compatibleRelease implements ~=X.Y[.Z]: the installed version must share
// every component but the last with the operand, and be >= the operand.
// ~=2.2 means >=2.2,<3.0; ~=2.2.1 means >=2.2.1,<2.3.0.
func compatibleRelease(spec, installed Version) bool {
	prefixLen := len(spec.components) - 1
	if prefixLen < 1 {
		prefixLen = 1
	}
	for i := 0; i < prefixLen; i++ {
		if installed.Component(i) != spec.Component(i) {
			return false
		}
	}
	return installed.Compare(spec) >= 0
}
