package sessions

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := Record{
		ID:     record.ID,
		Data:   maps.Clone(record.Data),
		Expiry: record.Expiry,
	}
	s.records[record.ID] = stored
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if record.Expired(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}

	return &Record{
		ID:     record.ID,
		Data:   maps.Clone(record.Data),
		Expiry: record.Expiry,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
