// Package authority holds the decision state machine: it converts a
// consensus outcome plus a final safety check into an execution verdict.
// The ordering of the transition rules is part of the contract.
package authority

import (
	"fmt"

	"github.com/Mindburn-Labs/conclave/pkg/consensus"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// Verdict is the execution authority granted by a decision.
type Verdict string

const (
	// VerdictPending signals "hold for re-evaluation": consensus was too weak
	// to grant or refuse authority.
	VerdictPending Verdict = "pending"
	// VerdictDenied refuses execution, either for a safety violation or
	// because the pipeline failed.
	VerdictDenied Verdict = "denied"
	// VerdictApproved grants execution authority to an external executor.
	VerdictApproved Verdict = "approved"
	// VerdictExecuted is set only by the external executor after consuming an
	// approved decision; the core never self-transitions to it.
	VerdictExecuted Verdict = "executed"
)

// Valid reports whether v is a recognized verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPending, VerdictDenied, VerdictApproved, VerdictExecuted:
		return true
	}
	return false
}

// SafetyCheck re-validates a proposal at the final gate. It reports
// acceptance and, when rejected, the reason.
type SafetyCheck func(p *worker.Proposal) (bool, string)

// Outcome is the verdict bundle Decide produces; the orchestrator assembles
// it into the final immutable Decision.
type Outcome struct {
	Verdict         Verdict
	FinalDecision   string
	Reasoning       string
	Contributions   map[string]float64
	Reproducibility float64
}

// Arbiter applies the transition rules.
type Arbiter struct {
	minConsensus float64
	recheck      SafetyCheck
}

// NewArbiter builds an arbiter gating on the given minimum consensus
// strength. The safety check runs against the leading proposal only; a nil
// check skips the final gate.
func NewArbiter(minConsensus float64, recheck SafetyCheck) *Arbiter {
	return &Arbiter{minConsensus: minConsensus, recheck: recheck}
}

// Decide evaluates the transition rules in order:
//
//  1. strength below the minimum consensus (the gate is inclusive, equality
//     passes) yields a pending verdict citing the shortfall;
//  2. a safety violation by the leading proposal yields a denied verdict
//     citing the violated rule;
//  3. otherwise the decision is approved, with contributions built from
//     every considered proposal and reproducibility taken from the leader's
//     cross-validation score.
func (a *Arbiter) Decide(c consensus.Consensus) Outcome {
	if c.Strength < a.minConsensus {
		return Outcome{
			Verdict:       VerdictPending,
			FinalDecision: "task held for re-evaluation: insufficient consensus",
			Reasoning: fmt.Sprintf("consensus strength %.2f below threshold %.2f",
				c.Strength, a.minConsensus),
			Contributions: map[string]float64{},
		}
	}

	if c.Leading != nil && a.recheck != nil {
		if ok, reason := a.recheck(c.Leading); !ok {
			return Outcome{
				Verdict:       VerdictDenied,
				FinalDecision: "execution denied: safety policy violation",
				Reasoning:     reason,
				Contributions: map[string]float64{},
			}
		}
	}

	contributions := make(map[string]float64, len(c.Ranked))
	for _, p := range c.Ranked {
		contributions[p.WorkerID] = p.Score
	}

	var final string
	var reproducibility float64
	if c.Leading != nil {
		final = c.Leading.Content
		if v, ok := c.Leading.Metadata[worker.MetadataCrossValidationScore].(float64); ok {
			reproducibility = v
		}
	}

	return Outcome{
		Verdict:       VerdictApproved,
		FinalDecision: final,
		Reasoning: fmt.Sprintf("consensus strength %.2f achieved, cross-validation passed",
			c.Strength),
		Contributions:   contributions,
		Reproducibility: reproducibility,
	}
}

// Degraded is the outcome for a pipeline failure: a well-formed denied
// verdict carrying the error text, so callers always receive a decision
// instead of an error.
func Degraded(err error) Outcome {
	return Outcome{
		Verdict:       VerdictDenied,
		Reasoning:     fmt.Sprintf("processing error: %v", err),
		Contributions: map[string]float64{},
	}
}
