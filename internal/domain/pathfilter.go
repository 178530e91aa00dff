package domain

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading "~" and cleans the result. Empty input
// stays empty.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Clean(p)
}

// ExpandPaths expands every entry and drops blanks.
func ExpandPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if e := ExpandPath(p); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// PathFilter rejects paths under excluded prefixes. Matching is a plain
// string prefix test, so "/tmp" also excludes "/tmpfiles".
type PathFilter struct {
	Excluded []string
}

func NewPathFilter(excluded []string) PathFilter {
	return PathFilter{Excluded: ExpandPaths(excluded)}
}

func (f PathFilter) IsExcluded(path string) bool {
	for _, e := range f.Excluded {
		if strings.HasPrefix(path, e) {
			return true
		}
	}
	return false
}
