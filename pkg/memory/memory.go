// Package memory is the orchestrator's shared blackboard. The orchestrator
// alone owns it: workers are stateless by contract and never receive a handle
// to the store, so nothing a worker does can observe or influence prior
// decisions through it.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrKeyNotFound is returned by Get for keys that were never set.
var ErrKeyNotFound = errors.New("memory key not found")

// Store is the shared-memory surface. Implementations must be safe for
// concurrent use; values round-trip through JSON in persistent backends, so
// callers should expect JSON types (numbers as float64) on the way back.
type Store interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
	// Keys returns every stored key in lexicographic order.
	Keys(ctx context.Context) ([]string, error)
}

// InMemoryStore is the default process-local store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]any)}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *InMemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ Store = (*InMemoryStore)(nil)
