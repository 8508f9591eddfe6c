// Package artifact pulls public URLs out of unit output and hands them to
// whoever consumes them.
package artifact

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultMarker is the log prefix a notebook server prints before its
// shareable address.
const DefaultMarker = "Running on public URL"

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Extractor finds URLs that follow a fixed marker. It holds no state between
// calls.
type Extractor struct {
	marker string
}

// NewExtractor returns an Extractor for marker. An empty marker falls back
// to DefaultMarker.
func NewExtractor(marker string) *Extractor {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Extractor{marker: marker}
}

// Marker returns the text the extractor looks for.
func (e *Extractor) Marker() string {
	return e.marker
}

// Extract returns every URL that follows the marker, in encounter order,
// without duplicates.
func (e *Extractor) Extract(lines []string) []string {
	var found []string
	seen := make(map[string]struct{})
	for _, line := range lines {
		idx := strings.Index(line, e.marker)
		if idx < 0 {
			continue
		}
		url := urlPattern.FindString(line[idx+len(e.marker):])
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		found = append(found, url)
	}
	return found
}

// Set accumulates artifacts for one run in first-seen order.
type Set struct {
	mu    sync.RWMutex
	items []string
	seen  map[string]struct{}
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add records urls and returns the ones not seen before.
func (s *Set) Add(urls ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, u := range urls {
		if _, ok := s.seen[u]; ok {
			continue
		}
		s.seen[u] = struct{}{}
		s.items = append(s.items, u)
		added = append(added, u)
	}
	return added
}

// First returns the earliest artifact, the one a run hands to its caller.
func (s *Set) First() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return "", false
	}
	return s.items[0], true
}

// All returns a copy of every artifact in first-seen order.
func (s *Set) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of artifacts.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
