package ledger

import (
	"context"
	"sync"
)

// Store persists audit records in append order. Implementations must never
// reorder, edit or drop records; the ledger serializes Append calls, so
// stores only need to be safe for concurrent reads against one writer.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// List returns every record, oldest first.
	List(ctx context.Context) ([]Record, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make([]Record, 0)}
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
