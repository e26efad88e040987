package memory

import (
	"context"
	"sync"

	audit "custos/pkg/platform/audit"
)

// InMemoryStore keeps execution records in process, newest last.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.ExecutionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AppendExecutionRecord(_ context.Context, record audit.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.records) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}
	out := make([]audit.ExecutionRecord, len(s.records)-start)
	copy(out, s.records[start:])
	return out, nil
}

// Len reports the number of appended records; test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
