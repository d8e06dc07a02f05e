// Package pathset implements the ordered string set used to pass store paths
// between pipeline stages.
//
// Store paths are opaque identifiers: the set never parses or normalizes
// them, membership is exact string equality. Insertion order is preserved and
// duplicates are dropped at the point of insertion, so a path appears at most
// once per set.
package pathset

import (
	"strings"
)

// Set is an insertion-ordered collection of store paths without duplicates.
//
// The zero value is not usable; construct with New or FromLines. A nil *Set
// behaves as an empty set for read operations.
type Set struct {
	index map[string]struct{}
	paths []string
}

// New returns a set containing the given paths, first occurrence wins.
func New(paths ...string) *Set {
	s := &Set{
		index: make(map[string]struct{}, len(paths)),
		paths: make([]string, 0, len(paths)),
	}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// FromLines builds a set from line-delimited text, the shape the store
// oracles emit. Blank lines and surrounding whitespace are dropped.
func FromLines(text string) *Set {
	lines := strings.Split(text, "\n")
	s := &Set{
		index: make(map[string]struct{}, len(lines)),
		paths: make([]string, 0, len(lines)),
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.Add(line)
	}
	return s
}

// Add inserts path unless already present. Reports whether the set changed.
// Empty strings are ignored.
func (s *Set) Add(path string) bool {
	if path == "" {
		return false
	}
	if _, ok := s.index[path]; ok {
		return false
	}
	s.index[path] = struct{}{}
	s.paths = append(s.paths, path)
	return true
}

// AddAll inserts every given path in order, skipping duplicates.
func (s *Set) AddAll(paths ...string) {
	for _, p := range paths {
		s.Add(p)
	}
}

// Contains reports whether path is a member.
func (s *Set) Contains(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[path]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.paths)
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// Paths returns the members in insertion order. The returned slice is a copy;
// mutating it does not affect the set.
func (s *Set) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Head returns up to n leading members in insertion order and the count of
// members beyond them. Used for capped previews; n <= 0 disables the cap and
// returns every member.
func (s *Set) Head(n int) (head []string, more int) {
	if s == nil {
		return nil, 0
	}
	if n <= 0 || n >= len(s.paths) {
		return s.Paths(), 0
	}
	head = make([]string, n)
	copy(head, s.paths[:n])
	return head, len(s.paths) - n
}
