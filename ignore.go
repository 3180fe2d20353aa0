package libkit

import (
	"fmt"
	"path"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns are never treated as library content. Package
// manifests live next to library.json in source checkouts.
var DefaultIgnorePatterns = []string{"package.json"}

// IgnoreMatcher decides whether a library file must be hidden.
type IgnoreMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewIgnoreMatcher compiles glob patterns with '/' as separator. A pattern
// without a slash is matched against the file name at any depth, one with a
// slash against the whole library relative path.
func NewIgnoreMatcher(patterns ...string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{patterns: patterns}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// MustIgnoreMatcher is like NewIgnoreMatcher but panics on invalid patterns.
func MustIgnoreMatcher(patterns ...string) *IgnoreMatcher {
	m, err := NewIgnoreMatcher(patterns...)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns returns the source patterns.
func (m *IgnoreMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Match reports whether the library relative file is ignored.
func (m *IgnoreMatcher) Match(file string) bool {
	if m == nil {
		return false
	}
	file = cleanFile(file)
	base := path.Base(file)
	for _, g := range m.globs {
		if g.Match(file) || g.Match(base) {
			return true
		}
	}
	return false
}

// cleanFile turns a caller supplied library file into a slash separated
// path relative to the library directory.
func cleanFile(file string) string {
	cleaned := path.Clean("/" + file)
	if cleaned == "/" {
		return ""
	}
	return cleaned[1:]
}
