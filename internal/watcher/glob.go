package watcher

import (
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// globSet is a pre-validated include/exclude pattern pair. Invalid patterns
// are dropped at construction time (logged once) rather than failing every
// match attempt.
type globSet struct {
	include []string
	exclude []string
}

func newGlobSet(include, exclude []string) globSet {
	return globSet{include: validPatterns(include), exclude: validPatterns(exclude)}
}

func validPatterns(patterns []string) []string {
	valid := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := doublestar.ValidatePattern(p); err != nil {
			slog.Warn("ignoring invalid glob pattern", "pattern", p, "error", err)
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

// matches reports whether path (relative to root) should be watched.
// Exclude patterns are evaluated first; an exclude match always wins over
// an include match. Patterns are tried against both the root-relative path
// and the bare basename.
func (g globSet) matches(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)

	for _, pat := range g.exclude {
		if doublestar.MatchUnvalidated(pat, rel) || doublestar.MatchUnvalidated(pat, base) {
			return false
		}
	}
	if len(g.include) == 0 {
		return true
	}
	for _, pat := range g.include {
		if doublestar.MatchUnvalidated(pat, rel) || doublestar.MatchUnvalidated(pat, base) {
			return true
		}
	}
	return false
}
