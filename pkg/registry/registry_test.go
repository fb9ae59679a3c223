package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

type stubWorker struct {
	id   string
	kind worker.Kind
}

func (s *stubWorker) ID() string        { return s.id }
func (s *stubWorker) Kind() worker.Kind { return s.kind }

func (s *stubWorker) Think(ctx context.Context, task string, taskContext map[string]any) (*worker.Proposal, error) {
	return worker.NewProposal(s.id, s.kind, "stub content", "stub rationale", 0.5), nil
}

func (s *stubWorker) CrossValidate(ctx context.Context, candidate *worker.Proposal) (worker.Judgment, error) {
	return worker.Judgment{WorkerID: s.id, Score: 0.5}, nil
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewInMemoryRegistry()

	first := &stubWorker{id: "w1", kind: worker.KindReasoning}
	replacement := &stubWorker{id: "w1", kind: worker.KindCritique}

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(replacement))

	assert.Equal(t, 1, r.Size())

	got, err := r.Get("w1")
	require.NoError(t, err)
	assert.Equal(t, worker.KindCritique, got.Kind())
}

func TestRegisterValidation(t *testing.T) {
	r := NewInMemoryRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubWorker{id: "", kind: worker.KindReasoning}))
	assert.Error(t, r.Register(&stubWorker{id: "w1", kind: worker.Kind("oracle")}))
	assert.Equal(t, 0, r.Size())
}

func TestGetAndUnregister(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(&stubWorker{id: "w1", kind: worker.KindReasoning}))

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrWorkerNotFound)

	assert.ErrorIs(t, r.Unregister("missing"), ErrWorkerNotFound)
	require.NoError(t, r.Unregister("w1"))
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.List())
}

func TestSelectEmptyRegistry(t *testing.T) {
	r := NewInMemoryRegistry()
	assert.Empty(t, r.Select("any task"))
}

func TestOnePerKindSelection(t *testing.T) {
	r := NewInMemoryRegistry()

	require.NoError(t, r.Register(&stubWorker{id: "critique-1", kind: worker.KindCritique}))
	require.NoError(t, r.Register(&stubWorker{id: "reasoning-1", kind: worker.KindReasoning}))
	require.NoError(t, r.Register(&stubWorker{id: "reasoning-2", kind: worker.KindReasoning}))
	require.NoError(t, r.Register(&stubWorker{id: "verify-1", kind: worker.KindVerification}))

	selected := r.Select("task")
	require.Len(t, selected, 3)

	// Canonical kind order, first-registered representative per kind.
	assert.Equal(t, "reasoning-1", selected[0].ID())
	assert.Equal(t, "critique-1", selected[1].ID())
	assert.Equal(t, "verify-1", selected[2].ID())
}

func TestSetSelector(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(&stubWorker{id: "w1", kind: worker.KindReasoning}))
	require.NoError(t, r.Register(&stubWorker{id: "w2", kind: worker.KindReasoning}))

	r.SetSelector(func(task string, pool []worker.Worker) []worker.Worker {
		return pool // full pool, no per-kind dedup
	})
	assert.Len(t, r.Select("task"), 2)

	r.SetSelector(nil)
	assert.Len(t, r.Select("task"), 1)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(&stubWorker{id: "seed", kind: worker.KindReasoning}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Register(&stubWorker{id: "seed", kind: worker.KindReasoning})
		}()
		go func() {
			defer wg.Done()
			_ = r.Select("task")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Size())
}
