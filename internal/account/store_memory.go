package account

import (
	"context"
	"sync"
	"time"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts and assets in process maps. It intentionally
// favors clarity over performance.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*Account
	assets   map[id.AssetID]*Asset
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*Account),
		assets:   make(map[id.AssetID]*Asset),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return sentinel.ErrConflict
	}
	if a.Version == 0 {
		a.Version = 1
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, accountID id.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, a *Account, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	cp := *a
	cp.Version = expectedVersion + 1
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now()
	s.accounts[a.ID] = &cp
	a.Version = cp.Version
	return nil
}

func (s *InMemoryStore) ListNeedingEnforcement(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, a := range s.accounts {
		if a.LicenseStatus == LicenseRevoked || a.FeeDueAt.IsZero() {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) CreateAsset(_ context.Context, asset *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListActiveByAccount(_ context.Context, accountID id.AccountID) ([]*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Asset
	for _, asset := range s.assets {
		if asset.AccountID == accountID && asset.Active {
			cp := *asset
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FlagRepossession(_ context.Context, assetIDs []id.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, assetID := range assetIDs {
		asset, ok := s.assets[assetID]
		if !ok {
			return sentinel.ErrNotFound
		}
		asset.RepossessionFlagged = true
		asset.RepossessionFlaggedAt = &now
	}
	return nil
}
