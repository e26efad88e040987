package flagging

import (
	"context"
	"sync"
	"time"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore backs both RuleStore and FlagStore for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	rules   map[id.RuleID]Rule
	flags   map[id.FlagID]*Flag
	reviews map[id.ReviewID]*ReviewItem
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rules:   make(map[id.RuleID]Rule),
		flags:   make(map[id.FlagID]*Flag),
		reviews: make(map[id.ReviewID]*ReviewItem),
	}
}

func (s *InMemoryStore) ListEnabledRules(_ context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, rule := range s.rules {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveRule(_ context.Context, rule Rule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

func (s *InMemoryStore) CreateFlag(_ context.Context, flag *Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[flag.ID]; ok {
		return sentinel.ErrConflict
	}
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = time.Now()
	}
	cp := *flag
	s.flags[flag.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetFlag(_ context.Context, flagID id.FlagID) (*Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flag, ok := s.flags[flagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *flag
	return &cp, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, flagID id.FlagID, action ResolutionAction, resolvedBy, notes string) (*Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag, ok := s.flags[flagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if flag.Resolved {
		return nil, sentinel.ErrAlreadyResolved
	}
	now := time.Now()
	flag.Resolved = true
	flag.ResolvedAt = &now
	flag.ResolvedBy = resolvedBy
	flag.ResolutionAction = action
	flag.ResolutionNotes = notes
	cp := *flag
	return &cp, nil
}

func (s *InMemoryStore) CreateReview(_ context.Context, review *ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[review.ID]; ok {
		return sentinel.ErrConflict
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	cp := *review
	s.reviews[review.ID] = &cp
	return nil
}

func (s *InMemoryStore) OpenReviewByTransaction(_ context.Context, txID id.TransactionID) (*ReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, review := range s.reviews {
		if review.TransactionID == txID && review.Open {
			cp := *review
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) CloseReview(_ context.Context, reviewID id.ReviewID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[reviewID]
	if !ok {
		return sentinel.ErrNotFound
	}
	review.Open = false
	return nil
}
