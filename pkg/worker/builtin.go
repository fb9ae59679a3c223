package worker

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// The builtin workers produce deterministic, template-driven proposals so the
// orchestration pipeline can run without any external model. Their
// cross-validation judgments are simulated per-kind constants pending a real
// similarity model; swap them out by registering your own Worker.

func newWorkerID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:8])
}

// ReasoningWorker decomposes a task into logical steps and proposes a
// systematic solution.
type ReasoningWorker struct {
	id string
}

func NewReasoningWorker() *ReasoningWorker {
	return &ReasoningWorker{id: newWorkerID("reasoning")}
}

func (w *ReasoningWorker) ID() string { return w.id }

func (w *ReasoningWorker) Kind() Kind { return KindReasoning }

func (w *ReasoningWorker) Think(ctx context.Context, task string, taskContext map[string]any) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	steps := decomposeTask(task)

	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\n\nstepwise analysis:\n", task)
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\nverified the logical linkage of each step and identified the conditions required to reach a conclusion")

	// Confidence grows with step completeness against the five-step baseline.
	completeness := float64(len(steps)) / 5.0
	confidence := math.Min(0.8+completeness*0.04, 0.95)

	p := NewProposal(w.id, KindReasoning,
		fmt.Sprintf("systematic solution via a %d-step logical approach", len(steps)),
		b.String(), confidence)
	p.Metadata["steps"] = steps
	p.Metadata["method"] = "logical_decomposition"
	return p, nil
}

func (w *ReasoningWorker) CrossValidate(ctx context.Context, candidate *Proposal) (Judgment, error) {
	if err := ctx.Err(); err != nil {
		return Judgment{}, err
	}
	return Judgment{
		WorkerID: w.id,
		Score:    0.85,
		Note:     "logical consistency of the reasoning chain confirmed",
	}, nil
}

func decomposeTask(task string) []string {
	return []string{
		"define the problem and analyze requirements",
		"identify required information and constraints",
		"explore candidate solutions",
		"evaluate the trade-offs of each candidate",
		"select and refine the best solution",
	}
}

// CritiqueWorker probes a task for weaknesses and proposes a hardened
// alternative. Its confidence is deliberately conservative.
type CritiqueWorker struct {
	id string
}

func NewCritiqueWorker() *CritiqueWorker {
	return &CritiqueWorker{id: newWorkerID("critique")}
}

func (w *CritiqueWorker) ID() string { return w.id }

func (w *CritiqueWorker) Kind() Kind { return KindCritique }

func (w *CritiqueWorker) Think(ctx context.Context, task string, taskContext map[string]any) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	weaknesses := identifyWeaknesses(task)

	var b strings.Builder
	b.WriteString("critical analysis of the task\n\nweaknesses found:\n")
	for _, weakness := range weaknesses {
		fmt.Fprintf(&b, "- %s\n", weakness)
	}
	b.WriteString("\nrisk factors: possible logical errors, information gaps, missing preconditions")

	p := NewProposal(w.id, KindCritique,
		"hardened solution addressing the identified weaknesses",
		b.String(), 0.75)
	p.Metadata["weaknesses"] = weaknesses
	p.Metadata["method"] = "critical_analysis"
	return p, nil
}

func (w *CritiqueWorker) CrossValidate(ctx context.Context, candidate *Proposal) (Judgment, error) {
	if err := ctx.Err(); err != nil {
		return Judgment{}, err
	}
	return Judgment{
		WorkerID: w.id,
		Score:    0.82,
		Note:     "objectivity and consistency of the critique confirmed",
	}, nil
}

func identifyWeaknesses(task string) []string {
	return []string{
		"possible incompleteness of the available information",
		"implicit assumptions not explicitly verified",
		"insufficient coverage of edge cases",
		"execution environment constraints overlooked",
	}
}

// VerificationWorker checks factual consistency and reproducibility of an
// approach before endorsing it.
type VerificationWorker struct {
	id string
}

func NewVerificationWorker() *VerificationWorker {
	return &VerificationWorker{id: newWorkerID("verification")}
}

func (w *VerificationWorker) ID() string { return w.id }

func (w *VerificationWorker) Kind() Kind { return KindVerification }

func (w *VerificationWorker) Think(ctx context.Context, task string, taskContext map[string]any) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	checks := verifyFacts(task)

	var b strings.Builder
	b.WriteString("verification results:\n")
	for _, check := range checks {
		fmt.Fprintf(&b, "- %s\n", check)
	}
	b.WriteString("\nreproducibility analysis:\nstability of the result under identical inputs: high")

	p := NewProposal(w.id, KindVerification,
		"verified stable solution",
		b.String(), 0.90)
	p.Metadata["verification_results"] = checks
	p.Metadata["method"] = "fact_verification"
	return p, nil
}

func (w *VerificationWorker) CrossValidate(ctx context.Context, candidate *Proposal) (Judgment, error) {
	if err := ctx.Err(); err != nil {
		return Judgment{}, err
	}
	return Judgment{
		WorkerID: w.id,
		Score:    0.88,
		Note:     "reproducibility and accuracy of the verification process confirmed",
	}, nil
}

func verifyFacts(task string) []string {
	return []string{
		"internal logical consistency confirmed",
		"preconditions checked for satisfaction",
		"conclusion derivation validated",
	}
}

// BuiltinPool returns one worker of each builtin kind, ready for
// registration.
func BuiltinPool() []Worker {
	return []Worker{
		NewReasoningWorker(),
		NewCritiqueWorker(),
		NewVerificationWorker(),
	}
}
