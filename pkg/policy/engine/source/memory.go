package source

import (
	"context"
	"sync"

	"gatekeeper-hq/gatekeeper/pkg/policy/loader"
)

// MemorySource is an in-memory rule source for testing.
type MemorySource struct {
	mu    sync.Mutex
	rules []*loader.Rule
}

// NewMemorySource creates a new in-memory rule source.
func NewMemorySource(rules ...*loader.Rule) *MemorySource {
	return &MemorySource{rules: rules}
}

// LoadRules returns the rules stored in memory, sorted like the loader
// sorts them.
func (s *MemorySource) LoadRules(ctx context.Context) ([]*loader.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := make([]*loader.Rule, len(s.rules))
	copy(rules, s.rules)
	loader.SortRules(rules)
	return rules, nil
}

// SetRules replaces the stored rules.
func (s *MemorySource) SetRules(rules ...*loader.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}
