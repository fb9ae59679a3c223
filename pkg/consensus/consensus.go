// Package consensus ranks validated proposals and measures how dominant the
// leading proposal is over the field. Ranking is deterministic for a fixed
// input set regardless of the order proposals arrived in.
package consensus

import (
	"sort"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// Score weights: self-reported confidence dominates, task relevance refines.
const (
	confidenceWeight = 0.6
	relevanceWeight  = 0.4
)

// RelevanceFunc scores the semantic relevance of a proposal to the task, in
// [0,1]. It is an extension point: wire in a real similarity model here.
type RelevanceFunc func(task string, p *worker.Proposal) float64

// NeutralRelevance is the baseline relevance function used when no
// similarity model is wired in. The constant keeps scoring stable without
// favoring any proposal.
func NeutralRelevance(task string, p *worker.Proposal) float64 { return 0.8 }

// Consensus is the outcome of ranking one proposal set.
type Consensus struct {
	// Strength is the leading proposal's score divided by the maximum score
	// in the set: in (0,1] for non-empty input, exactly 0 for empty input.
	Strength float64
	Leading  *worker.Proposal
	Ranked   []*worker.Proposal
}

// Builder computes weighted scores and forms the consensus.
type Builder struct {
	relevance RelevanceFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithRelevance replaces the baseline relevance function.
func WithRelevance(f RelevanceFunc) Option {
	return func(b *Builder) {
		if f != nil {
			b.relevance = f
		}
	}
}

func New(opts ...Option) *Builder {
	b := &Builder{relevance: NeutralRelevance}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Form scores and ranks the proposals. Each proposal's Score field is set to
// confidenceWeight*confidence + relevanceWeight*relevance. Ties rank by
// proposal ID so the order never depends on arrival order. Empty input
// yields strength 0 and no leading proposal, a defined non-error state.
func (b *Builder) Form(task string, proposals []*worker.Proposal) Consensus {
	if len(proposals) == 0 {
		return Consensus{Ranked: []*worker.Proposal{}}
	}

	ranked := make([]*worker.Proposal, len(proposals))
	copy(ranked, proposals)

	var maxScore float64
	for _, p := range ranked {
		p.Score = confidenceWeight*p.Confidence + relevanceWeight*b.relevance(task, p)
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	leading := ranked[0]
	strength := 0.0
	if maxScore > 0 {
		strength = leading.Score / maxScore
	}

	return Consensus{
		Strength: strength,
		Leading:  leading,
		Ranked:   ranked,
	}
}
