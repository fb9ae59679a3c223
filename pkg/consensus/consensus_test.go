package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

func proposalWithID(id string, confidence float64) *worker.Proposal {
	p := worker.NewProposal("worker-"+id, worker.KindReasoning, "content "+id, "rationale", confidence)
	p.ID = id
	return p
}

func TestFormEmptyInput(t *testing.T) {
	c := New().Form("task", nil)

	assert.Zero(t, c.Strength)
	assert.Nil(t, c.Leading)
	assert.Empty(t, c.Ranked)
}

func TestFormScoreFormula(t *testing.T) {
	b := New() // neutral relevance 0.8
	c := b.Form("task", []*worker.Proposal{proposalWithID("a", 0.5)})

	// 0.6*0.5 + 0.4*0.8
	assert.InDelta(t, 0.62, c.Leading.Score, 1e-9)
	assert.Equal(t, 1.0, c.Strength)
}

func TestFormInjectedRelevance(t *testing.T) {
	relevance := func(task string, p *worker.Proposal) float64 {
		if p.ID == "boosted" {
			return 1.0
		}
		return 0.0
	}
	b := New(WithRelevance(relevance))

	low := proposalWithID("plain", 0.9)
	high := proposalWithID("boosted", 0.6)

	c := b.Form("task", []*worker.Proposal{low, high})

	// plain: 0.54, boosted: 0.76
	assert.Equal(t, "boosted", c.Leading.ID)
	assert.InDelta(t, 0.76, c.Leading.Score, 1e-9)
	assert.InDelta(t, 0.54, low.Score, 1e-9)
}

func TestFormRankingDeterministic(t *testing.T) {
	a := proposalWithID("a", 0.9)
	b := proposalWithID("b", 0.6)
	d := proposalWithID("d", 0.3)

	builder := New()
	first := builder.Form("task", []*worker.Proposal{a, b, d})
	second := builder.Form("task", []*worker.Proposal{d, a, b})
	third := builder.Form("task", []*worker.Proposal{b, d, a})

	want := []string{"a", "b", "d"}
	for _, c := range []Consensus{first, second, third} {
		var got []string
		for _, p := range c.Ranked {
			got = append(got, p.ID)
		}
		assert.Equal(t, want, got)
	}
}

func TestFormTieBreaksByID(t *testing.T) {
	x := proposalWithID("x", 0.7)
	a := proposalWithID("a", 0.7)

	c := New().Form("task", []*worker.Proposal{x, a})

	require.Len(t, c.Ranked, 2)
	assert.Equal(t, "a", c.Ranked[0].ID)
	assert.Equal(t, "x", c.Ranked[1].ID)
	assert.Equal(t, 1.0, c.Strength)
}

func TestFormLeaderDominance(t *testing.T) {
	// Scores derived from confidences 0.9/0.6/0.3 with relevance pinned so the
	// scores come out 0.9, 0.6, 0.3.
	relevance := func(task string, p *worker.Proposal) float64 {
		return p.Confidence
	}
	a := proposalWithID("a", 0.9)
	b := proposalWithID("b", 0.6)
	d := proposalWithID("d", 0.3)

	c := New(WithRelevance(relevance)).Form("task", []*worker.Proposal{b, d, a})

	assert.InDelta(t, 0.9, c.Leading.Score, 1e-9)
	assert.Equal(t, 1.0, c.Strength)
	assert.Equal(t, "a", c.Leading.ID)
}

func TestFormZeroScores(t *testing.T) {
	relevance := func(task string, p *worker.Proposal) float64 { return 0 }
	p := proposalWithID("a", 0)

	c := New(WithRelevance(relevance)).Form("task", []*worker.Proposal{p})

	// All-zero scores cannot express dominance; strength degrades to 0.
	assert.Zero(t, c.Strength)
	assert.NotNil(t, c.Leading)
}

func TestFormDoesNotReorderInput(t *testing.T) {
	a := proposalWithID("a", 0.2)
	b := proposalWithID("b", 0.9)
	input := []*worker.Proposal{a, b}

	_ = New().Form("task", input)

	assert.Equal(t, "a", input[0].ID)
	assert.Equal(t, "b", input[1].ID)
}
