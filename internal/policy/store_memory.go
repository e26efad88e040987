package policy

import (
	"context"
	"sync"

	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps the active policy in process. It favors clarity over
// performance and seeds the default development policy unless told otherwise.
type InMemoryStore struct {
	mu     sync.RWMutex
	active *Policy
}

func NewInMemoryStore() *InMemoryStore {
	p := Default()
	return &InMemoryStore{active: &p}
}

// NewEmptyInMemoryStore returns a store with no active policy, for tests that
// exercise the policy-unavailable path.
func NewEmptyInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) GetActivePolicy(_ context.Context) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return Policy{}, sentinel.ErrUnavailable
	}
	return *s.active, nil
}

func (s *InMemoryStore) SetActivePolicy(_ context.Context, p Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &p
	return nil
}
