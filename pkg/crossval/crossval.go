// Package crossval computes a proposal's reproducibility score by soliciting
// judgments from workers of other kinds. Peer-kind workers are excluded to
// avoid self-confirmation bias; failed judgments are excluded from the
// average rather than counted as zero.
package crossval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// DefaultCallTimeout bounds a single CrossValidate invocation.
const DefaultCallTimeout = 10 * time.Second

// Outcome is the settled result of cross-validating one candidate.
type Outcome struct {
	// Score is the arithmetic mean of the successful judgments, or 0 when
	// none succeeded (conservative default: the candidate then fails the
	// minimum-reproducibility gate).
	Score     float64
	Judgments []worker.Judgment
	Failures  int
}

// Validator fans judgment requests out to eligible workers.
type Validator struct {
	callTimeout time.Duration
	maxParallel int
}

// Option configures a Validator.
type Option func(*Validator)

// WithCallTimeout sets the per-judgment timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.callTimeout = d
		}
	}
}

// WithMaxParallel bounds the number of in-flight judgment calls.
func WithMaxParallel(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxParallel = n
		}
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{callTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Score solicits a reproducibility judgment from every pool worker whose
// kind differs from the candidate's producing kind. Each call runs under its
// own deadline; one failing judge never cancels the others. The mean is
// accumulated in judge order, independent of completion order.
func (v *Validator) Score(ctx context.Context, candidate *worker.Proposal, pool []worker.Worker) Outcome {
	judges := make([]worker.Worker, 0, len(pool))
	for _, w := range pool {
		if w.Kind() != candidate.Kind {
			judges = append(judges, w)
		}
	}
	if len(judges) == 0 {
		return Outcome{}
	}

	maxParallel := v.maxParallel
	if maxParallel <= 0 || maxParallel > len(judges) {
		maxParallel = len(judges)
	}

	type judgeResult struct {
		index    int
		judgment worker.Judgment
		err      error
	}

	results := make(chan judgeResult, len(judges))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, j := range judges {
		wg.Add(1)
		go func(idx int, judge worker.Worker) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			judgment, err := v.judge(ctx, judge, candidate)
			results <- judgeResult{index: idx, judgment: judgment, err: err}
		}(i, j)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	settled := make([]judgeResult, len(judges))
	for r := range results {
		settled[r.index] = r
	}

	outcome := Outcome{}
	var sum float64
	for _, r := range settled {
		if r.err != nil {
			outcome.Failures++
			continue
		}
		outcome.Judgments = append(outcome.Judgments, r.judgment)
		sum += r.judgment.Score
	}
	if len(outcome.Judgments) > 0 {
		outcome.Score = sum / float64(len(outcome.Judgments))
	}
	return outcome
}

func (v *Validator) judge(ctx context.Context, judge worker.Worker, candidate *worker.Proposal) (judgment worker.Judgment, err error) {
	callCtx, cancel := context.WithTimeout(ctx, v.callTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			judgment = worker.Judgment{}
			err = fmt.Errorf("judge %s panicked: %v", judge.ID(), r)
		}
	}()

	judgment, err = judge.CrossValidate(callCtx, candidate)
	if err != nil {
		return worker.Judgment{}, fmt.Errorf("judge %s failed: %w", judge.ID(), err)
	}
	if judgment.Score < 0 || judgment.Score > 1 {
		return worker.Judgment{}, fmt.Errorf("judge %s returned score %v out of [0,1]", judge.ID(), judgment.Score)
	}
	if judgment.WorkerID == "" {
		judgment.WorkerID = judge.ID()
	}
	return judgment, nil
}
