package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	txs map[id.TransactionID]*Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{txs: make(map[id.TransactionID]*Transaction)}
}

func (s *InMemoryStore) Create(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return sentinel.ErrConflict
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, txID id.TransactionID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, txID id.TransactionID, status Status, flagID *id.FlagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[txID]
	if !ok {
		return sentinel.ErrNotFound
	}
	tx.Status = status
	if flagID != nil {
		tx.FlagID = flagID
	}
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, tx := range s.txs {
		if tx.SellerID == accountID || tx.BuyerID == accountID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
