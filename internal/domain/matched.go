package domain

import (
	"sort"
	"sync"
)

// MatchedFileSet holds the paths the signature scanner confirmed during the
// current session. A path is reported at most once per session.
//
// Writes come only from the monitor loop; the mutex exists so status
// readers see a consistent view.
type MatchedFileSet struct {
	paths map[string]struct{}
	mu    sync.RWMutex
}

func NewMatchedFileSet() *MatchedFileSet {
	return &MatchedFileSet{paths: make(map[string]struct{})}
}

// Add records path and reports whether it was new.
func (s *MatchedFileSet) Add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	return true
}

func (s *MatchedFileSet) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[path]
	return ok
}

func (s *MatchedFileSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Paths returns the matched paths in lexical order.
func (s *MatchedFileSet) Paths() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *MatchedFileSet) Clear() {
	s.mu.Lock()
	s.paths = make(map[string]struct{})
	s.mu.Unlock()
}
