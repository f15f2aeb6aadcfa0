package semverx

import "github.com/riverrun/depwatch/internal/ecosystem"

// VersionSpec is a version specifier parsed once for its owning ecosystem.
// Rust's Cargo.toml requirement strings use the same grammar as npm's, so
// both route through the JS parser, except that a bare Rust version
// ("1.35") is read as a caret requirement, as Cargo does; Python routes
// through the PEP 440 subset parser.
type VersionSpec struct {
	eco    ecosystem.Ecosystem
	python PythonSpec
	js     JSSpec
}

// ParseSpec parses spec according to the conventions of eco.
func ParseSpec(eco ecosystem.Ecosystem, spec string) VersionSpec {
	vs := VersionSpec{eco: eco}
	switch eco {
	case ecosystem.Python:
		vs.python = ParsePythonSpec(spec)
	case ecosystem.Rust:
		vs.js = ParseJSSpec(spec)
		if vs.js.op == jsExact {
			vs.js.op = jsCaret
		}
	default:
		vs.js = ParseJSSpec(spec)
	}
	return vs
}

// Satisfies reports whether installedVersion (a plain version string, e.g.
// "2.31.0") satisfies this specifier.
func (vs VersionSpec) Satisfies(installedVersion string) bool {
	installed := ParseVersion(installedVersion)
	switch vs.eco {
	case ecosystem.Python:
		return vs.python.Satisfies(installed)
	default:
		return vs.js.Satisfies(installed)
	}
}

// Satisfies is a convenience one-shot entry point for call sites that don't
// need to retain a parsed VersionSpec (e.g. a single ad hoc check in a
// test). Hot paths should call ParseSpec once and reuse the result.
func Satisfies(eco ecosystem.Ecosystem, installedVersion, spec string) bool {
	return ParseSpec(eco, spec).Satisfies(installedVersion)
}
