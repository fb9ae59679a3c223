package crossval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

type fakeJudge struct {
	id       string
	kind     worker.Kind
	score    float64
	err      error
	panicMsg string
	delay    time.Duration
}

func (f *fakeJudge) ID() string        { return f.id }
func (f *fakeJudge) Kind() worker.Kind { return f.kind }

func (f *fakeJudge) Think(ctx context.Context, task string, taskContext map[string]any) (*worker.Proposal, error) {
	return worker.NewProposal(f.id, f.kind, "c", "r", 0.5), nil
}

func (f *fakeJudge) CrossValidate(ctx context.Context, candidate *worker.Proposal) (worker.Judgment, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return worker.Judgment{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return worker.Judgment{}, f.err
	}
	return worker.Judgment{WorkerID: f.id, Score: f.score, Note: "ok"}, nil
}

func candidate() *worker.Proposal {
	return worker.NewProposal("producer", worker.KindReasoning, "content", "rationale", 0.8)
}

func TestScoreExcludesSameKind(t *testing.T) {
	pool := []worker.Worker{
		&fakeJudge{id: "same-kind", kind: worker.KindReasoning, score: 0.1},
		&fakeJudge{id: "critique", kind: worker.KindCritique, score: 0.8},
		&fakeJudge{id: "verify", kind: worker.KindVerification, score: 0.9},
	}

	out := New().Score(context.Background(), candidate(), pool)

	require.Len(t, out.Judgments, 2)
	for _, j := range out.Judgments {
		assert.NotEqual(t, "same-kind", j.WorkerID)
	}
	assert.InDelta(t, 0.85, out.Score, 1e-9)
}

func TestScoreFailuresExcludedFromMean(t *testing.T) {
	pool := []worker.Worker{
		&fakeJudge{id: "ok", kind: worker.KindCritique, score: 0.9},
		&fakeJudge{id: "down", kind: worker.KindVerification, err: errors.New("unavailable")},
	}

	out := New().Score(context.Background(), candidate(), pool)

	require.Len(t, out.Judgments, 1)
	assert.Equal(t, 1, out.Failures)
	// The failure is excluded, not averaged in as zero.
	assert.InDelta(t, 0.9, out.Score, 1e-9)
}

func TestScoreZeroWhenNoJudgmentSucceeds(t *testing.T) {
	t.Run("All Fail", func(t *testing.T) {
		pool := []worker.Worker{
			&fakeJudge{id: "a", kind: worker.KindCritique, err: errors.New("down")},
			&fakeJudge{id: "b", kind: worker.KindVerification, panicMsg: "bug"},
		}
		out := New().Score(context.Background(), candidate(), pool)
		assert.Zero(t, out.Score)
		assert.Empty(t, out.Judgments)
		assert.Equal(t, 2, out.Failures)
	})

	t.Run("No Eligible Judges", func(t *testing.T) {
		pool := []worker.Worker{
			&fakeJudge{id: "peer", kind: worker.KindReasoning, score: 0.99},
		}
		out := New().Score(context.Background(), candidate(), pool)
		assert.Zero(t, out.Score)
		assert.Empty(t, out.Judgments)
	})

	t.Run("Empty Pool", func(t *testing.T) {
		out := New().Score(context.Background(), candidate(), nil)
		assert.Zero(t, out.Score)
	})
}

func TestScoreOutOfRangeJudgmentIsFailure(t *testing.T) {
	pool := []worker.Worker{
		&fakeJudge{id: "broken", kind: worker.KindCritique, score: 1.5},
		&fakeJudge{id: "ok", kind: worker.KindVerification, score: 0.8},
	}

	out := New().Score(context.Background(), candidate(), pool)

	assert.Equal(t, 1, out.Failures)
	require.Len(t, out.Judgments, 1)
	assert.InDelta(t, 0.8, out.Score, 1e-9)
}

func TestScoreTimeoutDoesNotCancelSiblings(t *testing.T) {
	pool := []worker.Worker{
		&fakeJudge{id: "slow", kind: worker.KindCritique, score: 0.9, delay: 2 * time.Second},
		&fakeJudge{id: "fast", kind: worker.KindVerification, score: 0.7},
	}

	out := New(WithCallTimeout(30 * time.Millisecond)).Score(context.Background(), candidate(), pool)

	assert.Equal(t, 1, out.Failures)
	require.Len(t, out.Judgments, 1)
	assert.Equal(t, "fast", out.Judgments[0].WorkerID)
	assert.InDelta(t, 0.7, out.Score, 1e-9)
}

func TestScoreDeterministicMean(t *testing.T) {
	pool := []worker.Worker{
		&fakeJudge{id: "a", kind: worker.KindCritique, score: 0.3},
		&fakeJudge{id: "b", kind: worker.KindVerification, score: 0.6},
		&fakeJudge{id: "c", kind: worker.KindDomain, score: 0.9},
	}

	v := New()
	first := v.Score(context.Background(), candidate(), pool)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Score, v.Score(context.Background(), candidate(), pool).Score)
	}
}
