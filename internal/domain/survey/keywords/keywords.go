// Package keywords provides case-insensitive substring matching of a fixed
// keyword dictionary against filenames and column headers.
package keywords

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Set is an immutable keyword dictionary backed by an Aho-Corasick automaton,
// so one pass over the input finds every keyword it contains.
type Set struct {
	words []string

	// the matcher keeps per-call bookkeeping and is not safe for concurrent use
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// NewSet builds a Set from the given keywords. Keywords are lowercased;
// blanks and repeats are dropped.
func NewSet(words ...string) *Set {
	seen := make(map[string]bool, len(words))
	clean := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		clean = append(clean, w)
	}

	s := &Set{words: clean}
	if len(clean) > 0 {
		patterns := make([][]byte, len(clean))
		for i, w := range clean {
			patterns[i] = []byte(w)
		}
		s.matcher = ahocorasick.NewMatcher(patterns)
	}
	return s
}

// Words returns the dictionary in declaration order.
func (s *Set) Words() []string {
	return append([]string(nil), s.words...)
}

// Find returns the distinct keywords contained in text, in dictionary order.
func (s *Set) Find(text string) []string {
	if s == nil || s.matcher == nil || text == "" {
		return nil
	}

	s.mu.Lock()
	hits := s.matcher.Match([]byte(strings.ToLower(text)))
	s.mu.Unlock()

	if len(hits) == 0 {
		return nil
	}
	matched := make([]bool, len(s.words))
	for _, idx := range hits {
		if idx >= 0 && idx < len(matched) {
			matched[idx] = true
		}
	}
	out := make([]string, 0, len(hits))
	for i, ok := range matched {
		if ok {
			out = append(out, s.words[i])
		}
	}
	return out
}

// Contains reports whether text contains any keyword.
func (s *Set) Contains(text string) bool {
	return len(s.Find(text)) > 0
}

// FindAny returns the distinct keywords found across all texts, in dictionary order.
func (s *Set) FindAny(texts []string) []string {
	found := make(map[string]bool)
	for _, t := range texts {
		for _, w := range s.Find(t) {
			found[w] = true
		}
	}
	out := make([]string, 0, len(found))
	for _, w := range s.words {
		if found[w] {
			out = append(out, w)
		}
	}
	return out
}

// FirstColumn returns the first column, in order, whose name contains a
// keyword. Columns for which skip returns true are ignored.
func (s *Set) FirstColumn(columns []string, skip func(string) bool) (string, bool) {
	for _, c := range columns {
		if skip != nil && skip(c) {
			continue
		}
		if s.Contains(c) {
			return c, true
		}
	}
	return "", false
}
