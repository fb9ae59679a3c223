// Package registry holds the worker pool and the task-scoped selection
// policy. The pool is read-mostly: many in-flight decisions may select from
// it concurrently while registration is rare.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

var ErrWorkerNotFound = errors.New("worker not found")

// Selector chooses the subset of the pool relevant to a task. Selection
// policy is pluggable; the pool slice passed in is a private copy the
// selector may reorder freely.
type Selector func(task string, pool []worker.Worker) []worker.Worker

// Registry acts as the source of truth for the available workers.
type Registry interface {
	Register(w worker.Worker) error
	Unregister(id string) error
	Get(id string) (worker.Worker, error)
	// List returns all registered workers in registration order.
	List() []worker.Worker
	// Select returns the workers relevant to the task. An empty registry
	// yields an empty selection, not an error.
	Select(task string) []worker.Worker
	Size() int
}

// InMemoryRegistry is a thread-safe in-memory implementation.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	workers  map[string]worker.Worker
	order    []string
	selector Selector
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		workers:  make(map[string]worker.Worker),
		selector: OnePerKind,
	}
}

// SetSelector replaces the selection policy. Passing nil restores the
// baseline one-per-kind policy.
func (r *InMemoryRegistry) SetSelector(s Selector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == nil {
		s = OnePerKind
	}
	r.selector = s
}

// Register adds a worker to the pool. Registering an ID twice replaces the
// previous worker instead of duplicating it.
func (r *InMemoryRegistry) Register(w worker.Worker) error {
	if w == nil {
		return errors.New("nil worker")
	}
	if w.ID() == "" {
		return errors.New("worker has empty id")
	}
	if !w.Kind().Valid() {
		return fmt.Errorf("worker %s has unknown kind %q", w.ID(), w.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[w.ID()]; !exists {
		r.order = append(r.order, w.ID())
	}
	r.workers[w.ID()] = w
	return nil
}

func (r *InMemoryRegistry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[id]; !ok {
		return ErrWorkerNotFound
	}
	delete(r.workers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryRegistry) Get(id string) (worker.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	return w, nil
}

func (r *InMemoryRegistry) List() []worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *InMemoryRegistry) listLocked() []worker.Worker {
	out := make([]worker.Worker, 0, len(r.order))
	for _, id := range r.order {
		if w, ok := r.workers[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

func (r *InMemoryRegistry) Select(task string) []worker.Worker {
	r.mu.RLock()
	pool := r.listLocked()
	selector := r.selector
	r.mu.RUnlock()

	return selector(task, pool)
}

func (r *InMemoryRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// OnePerKind is the baseline selection policy: one representative worker per
// kind category, bounding fan-out cost. The first-registered worker of each
// kind wins; the result is ordered by the canonical kind order, never by
// arrival order.
func OnePerKind(task string, pool []worker.Worker) []worker.Worker {
	byKind := make(map[worker.Kind]worker.Worker, len(pool))
	for _, w := range pool {
		if _, taken := byKind[w.Kind()]; !taken {
			byKind[w.Kind()] = w
		}
	}

	out := make([]worker.Worker, 0, len(byKind))
	for _, k := range worker.Kinds() {
		if w, ok := byKind[k]; ok {
			out = append(out, w)
		}
	}
	return out
}
