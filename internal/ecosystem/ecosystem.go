// Package ecosystem defines the closed set of package ecosystems depwatch
// understands. Using a typed enum instead of the string "handler tags" an
// earlier design carried keeps routing from filename to reconciler
// exhaustive and compiler-checked.
package ecosystem

import "fmt"

// Ecosystem identifies one of the three package ecosystems depwatch
// reconciles. It is a closed set -- adding a fourth ecosystem is a
// deliberate, compiler-visible change, not a new string constant.
type Ecosystem int

const (
	Python Ecosystem = iota
	JavaScript
	Rust
)

// String renders the ecosystem's canonical lowercase tag, used in log
// fields, store rows, and metrics labels.
func (e Ecosystem) String() string {
	switch e {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	case Rust:
		return "rust"
	default:
		return fmt.Sprintf("ecosystem(%d)", int(e))
	}
}

// ManifestFilename returns the manifest filename this ecosystem reconciles.
func (e Ecosystem) ManifestFilename() string {
	switch e {
	case Python:
		return "requirements.txt"
	case JavaScript:
		return "package.json"
	case Rust:
		return "Cargo.toml"
	default:
		return ""
	}
}

// FromFilename classifies a basename into its Ecosystem. ok is false for
// any filename that is not one of the three recognized manifests.
func FromFilename(basename string) (Ecosystem, bool) {
	switch basename {
	case "requirements.txt":
		return Python, true
	case "package.json":
		return JavaScript, true
	case "Cargo.toml":
		return Rust, true
	default:
		return 0, false
	}
}

// All enumerates the closed set, in a stable order, for code that needs to
// range over every known ecosystem (default include globs, metrics
// pre-registration, etc.).
func All() []Ecosystem {
	return []Ecosystem{Python, JavaScript, Rust}
}
