package testutil

import (
	"sync"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/signature"
)

// MockLookup is an in-memory patternindex.Lookup that counts calls.
type MockLookup struct {
	mu       sync.Mutex
	patterns map[string]pattern.DependencyPattern

	// Calls counts Pattern invocations; Hits counts the ones that found a
	// pattern.
	Calls int
	Hits  int
}

var _ patternindex.Lookup = (*MockLookup)(nil)

// NewMockLookup creates a lookup holding entries.
func NewMockLookup(entries ...patternindex.Entry) *MockLookup {
	m := &MockLookup{patterns: make(map[string]pattern.DependencyPattern, len(entries))}
	for _, e := range entries {
		m.patterns[e.Key] = e.Pattern
	}
	return m
}

// Put adds or replaces the pattern for key.
func (m *MockLookup) Put(key string, p pattern.DependencyPattern) {
	m.mu.Lock()
	m.patterns[key] = p
	m.mu.Unlock()
}

// Pattern implements patternindex.Lookup.
func (m *MockLookup) Pattern(sig signature.Signature) (pattern.DependencyPattern, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	p, ok := m.patterns[sig.Key()]
	if ok {
		m.Hits++
	}
	return p.Clone(), ok
}

// Counts returns Calls and Hits under the lock.
func (m *MockLookup) Counts() (calls, hits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls, m.Hits
}
