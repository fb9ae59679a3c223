package authority

import (
	"errors"
	"time"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// ErrNotApproved is returned when marking execution on a decision that was
// never approved.
var ErrNotApproved = errors.New("decision not approved")

// Decision is the immutable unit of the audit trail: one per processed task.
// Once constructed it is never mutated; MarkExecuted returns a copy.
type Decision struct {
	ID              string             `json:"id"`
	TaskID          string             `json:"task_id"`
	Proposals       []*worker.Proposal `json:"proposals"`
	FinalDecision   string             `json:"final_decision"`
	Verdict         Verdict            `json:"verdict"`
	Reasoning       string             `json:"reasoning"`
	Contributions   map[string]float64 `json:"contributions"`
	Duration        time.Duration      `json:"duration"`
	Reproducibility float64            `json:"reproducibility"`
	CreatedAt       time.Time          `json:"created_at"`
}

// MarkExecuted is the hook for the external executor: it derives an executed
// decision from an approved one. Any other verdict is refused; the input
// decision is left untouched.
func MarkExecuted(d *Decision) (*Decision, error) {
	if d == nil {
		return nil, errors.New("nil decision")
	}
	if d.Verdict != VerdictApproved {
		return nil, ErrNotApproved
	}
	executed := *d
	executed.Verdict = VerdictExecuted
	return &executed, nil
}
