// Package semverx implements ecosystem-aware version satisfaction rules: a
// PEP 440 subset for Python, caret/tilde/comparator SemVer for JavaScript,
// and the shared numeric comparison rule (pre-release/build metadata
// stripped, shorter-is-less) both rest on.
//
// Every comparison call site parses its operand once into a typed
// VersionSpec rather than re-matching a regex per check.
package semverx

import (
	"strconv"
	"strings"
)

// Version is a parsed, comparable version. Only the numeric component
// list participates in ordering; pre-release and build metadata (after
// "-" or "+") are stripped before comparison.
type Version struct {
	raw        string
	components []int64
}

// ParseVersion parses a version string into its numeric component list.
// Parsing never fails: components stop at the first non-numeric segment,
// and a string with zero numeric components compares as less than any
// version with at least one.
func ParseVersion(s string) Version {
	core := stripMetadata(strings.TrimSpace(s))
	parts := strings.Split(core, ".")
	comps := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			break
		}
		comps = append(comps, n)
	}
	return Version{raw: s, components: comps}
}

func stripMetadata(s string) string {
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		return s[:i]
	}
	return s
}

// Compare returns -1, 0, or 1. Components are compared numerically pairwise;
// when one version's component list is a strict prefix of the other's, the
// shorter one compares as less.
func (v Version) Compare(other Version) int {
	n := len(v.components)
	if len(other.components) < n {
		n = len(other.components)
	}
	for i := 0; i < n; i++ {
		if v.components[i] != other.components[i] {
			if v.components[i] < other.components[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(v.components) < len(other.components):
		return -1
	case len(v.components) > len(other.components):
		return 1
	default:
		return 0
	}
}

// Component returns the i-th numeric component, or 0 if the version has
// fewer components (so "1.2" and "1.2.0" behave identically for range
// operators that look at a fixed number of positions).
func (v Version) Component(i int) int64 {
	if i < len(v.components) {
		return v.components[i]
	}
	return 0
}

// String returns the original, unparsed version text.
func (v Version) String() string { return v.raw }
