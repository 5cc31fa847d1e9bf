package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// IgnoreFilename is an optional file under the items root listing extra
// patterns for the integrity check, one per line.
const IgnoreFilename = ".dvignore"

// DefaultIgnorePatterns name files desktop tools drop into directories.
// They are never reported as untracked.
var DefaultIgnorePatterns = []string{".DS_Store", "Thumbs.db", "desktop.ini"}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the relative path instead of the basename
}

// IgnoreMatcher decides which untracked files inside a container directory
// the integrity check skips. Patterns without '/' match the basename;
// patterns with '/' match the path relative to the container directory.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher compiles the default patterns plus raw. Blank lines and
// lines starting with '#' are skipped. A malformed pattern is an error.
func NewIgnoreMatcher(raw []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	for _, p := range append(slices.Clone(DefaultIgnorePatterns), raw...) {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if _, err := filepath.Match(p, ""); errors.Is(err, filepath.ErrBadPattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, ignorePattern{
			pattern:   p,
			matchPath: strings.Contains(p, "/"),
		})
	}
	return m, nil
}

// Match reports whether relPath should be skipped.
func (m *IgnoreMatcher) Match(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, p := range m.patterns {
		target := base
		if p.matchPath {
			target = normalized
		}
		if ok, _ := filepath.Match(p.pattern, target); ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads patterns from path, one per line. A missing file
// yields no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
