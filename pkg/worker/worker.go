// Package worker defines the capability contract for the stateless agents
// the orchestrator solicits proposals from, together with the proposal and
// judgment types that cross package boundaries.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a worker's capability category. The set is closed:
// selection and cross-validation exclusion reason about kinds, so unknown
// kinds are rejected at registration time.
type Kind string

const (
	KindReasoning    Kind = "reasoning"
	KindCritique     Kind = "critique"
	KindVerification Kind = "verification"
	KindDomain       Kind = "domain"
	KindDesign       Kind = "design"
	KindBenchmark    Kind = "benchmark"
)

// Kinds returns every recognized kind in deterministic order.
func Kinds() []Kind {
	return []Kind{
		KindReasoning,
		KindCritique,
		KindVerification,
		KindDomain,
		KindDesign,
		KindBenchmark,
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindReasoning, KindCritique, KindVerification, KindDomain, KindDesign, KindBenchmark:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown worker kind %q", s)
	}
	return k, nil
}

// Proposal is a worker's candidate answer for one task invocation.
// Confidence is set once by the producing worker and never mutated;
// Score and Metadata entries are populated only by the orchestrator
// during scoring and cross-validation.
type Proposal struct {
	ID         string         `json:"id"`
	WorkerID   string         `json:"worker_id"`
	Kind       Kind           `json:"kind"`
	Content    string         `json:"content"`
	Rationale  string         `json:"rationale"`
	Confidence float64        `json:"confidence"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewProposal assembles a proposal with a fresh ID and timestamp.
func NewProposal(workerID string, kind Kind, content, rationale string, confidence float64) *Proposal {
	return &Proposal{
		ID:         uuid.New().String(),
		WorkerID:   workerID,
		Kind:       kind,
		Content:    content,
		Rationale:  rationale,
		Confidence: confidence,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now().UTC(),
	}
}

// MetadataCrossValidationScore is the metadata key under which the
// orchestrator records a proposal's aggregated reproducibility score.
const MetadataCrossValidationScore = "cross_validation_score"

// Judgment is a worker's reproducibility assessment of a peer proposal.
// Score is in [0,1].
type Judgment struct {
	WorkerID string  `json:"worker_id"`
	Score    float64 `json:"score"`
	Note     string  `json:"note"`
}

// Worker is a stateless capability unit. Implementations must not retain
// information between invocations and must not perform side effects beyond
// the returned value; each invocation is independent.
type Worker interface {
	ID() string
	Kind() Kind

	// Think produces one proposal for the task. The context carries the
	// per-call deadline enforced by the collector.
	Think(ctx context.Context, task string, taskContext map[string]any) (*Proposal, error)

	// CrossValidate judges how reproducibly the candidate proposal could be
	// regenerated. Pure judgment, no side effects.
	CrossValidate(ctx context.Context, candidate *Proposal) (Judgment, error)
}
