// Package collect fans a task out to the selected workers in parallel and
// fans the proposals back in, tolerating partial failure. A worker that
// errors, panics or exceeds its per-call timeout is excluded from the batch;
// it never aborts sibling calls.
package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// DefaultCallTimeout bounds a single Think invocation.
const DefaultCallTimeout = 10 * time.Second

// maxParallelCap bounds the semaphore regardless of pool size.
const maxParallelCap = 32

// Result is the outcome of one worker invocation. Exactly one of Proposal
// and Err is set.
type Result struct {
	WorkerID string
	Kind     worker.Kind
	Proposal *worker.Proposal
	Err      error
	Elapsed  time.Duration
}

// Batch is the settled outcome of one collection round.
type Batch struct {
	Results  []Result
	Duration time.Duration
}

// Proposals returns the successful proposals in result order.
func (b *Batch) Proposals() []*worker.Proposal {
	out := make([]*worker.Proposal, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Err == nil && r.Proposal != nil {
			out = append(out, r.Proposal)
		}
	}
	return out
}

// Failures returns the failed results in result order.
func (b *Batch) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Collector runs bounded-parallel proposal collection.
type Collector struct {
	callTimeout time.Duration
	maxParallel int
	limiter     *rate.Limiter
}

// Option configures a Collector.
type Option func(*Collector)

// WithCallTimeout sets the per-invocation timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithMaxParallel bounds the number of in-flight invocations.
func WithMaxParallel(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithRateLimiter throttles solicitation across the batch; each invocation
// waits for a token before calling the worker.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Collector) { c.limiter = l }
}

func New(opts ...Option) *Collector {
	c := &Collector{
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect invokes Think on every worker concurrently and waits for the batch
// to settle. The result slice is indexed by the input worker order; success
// means the batch settled, not that every worker succeeded.
func (c *Collector) Collect(ctx context.Context, workers []worker.Worker, task string, taskContext map[string]any) *Batch {
	start := time.Now()

	if len(workers) == 0 {
		return &Batch{Results: []Result{}, Duration: time.Since(start)}
	}

	maxParallel := c.maxParallel
	if maxParallel <= 0 || maxParallel > len(workers) {
		maxParallel = len(workers)
	}
	if maxParallel > maxParallelCap {
		maxParallel = maxParallelCap
	}

	type callResult struct {
		index    int
		proposal *worker.Proposal
		err      error
		elapsed  time.Duration
	}

	results := make(chan callResult, len(workers))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, w := range workers {
		wg.Add(1)
		go func(idx int, w worker.Worker) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callStart := time.Now()
			proposal, err := c.invoke(ctx, w, task, taskContext)
			results <- callResult{
				index:    idx,
				proposal: proposal,
				err:      err,
				elapsed:  time.Since(callStart),
			}
		}(i, w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, len(workers))
	for r := range results {
		w := workers[r.index]
		out[r.index] = Result{
			WorkerID: w.ID(),
			Kind:     w.Kind(),
			Proposal: r.proposal,
			Err:      r.err,
			Elapsed:  r.elapsed,
		}
	}

	return &Batch{Results: out, Duration: time.Since(start)}
}

// invoke runs one Think call under its own deadline, converting panics into
// errors so a misbehaving worker cannot take down the batch.
func (c *Collector) invoke(ctx context.Context, w worker.Worker, task string, taskContext map[string]any) (proposal *worker.Proposal, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("solicitation throttled: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			proposal = nil
			err = fmt.Errorf("worker %s panicked: %v", w.ID(), r)
		}
	}()

	proposal, err = w.Think(callCtx, task, taskContext)
	if err != nil {
		return nil, fmt.Errorf("worker %s think failed: %w", w.ID(), err)
	}
	if proposal == nil {
		return nil, fmt.Errorf("worker %s returned no proposal", w.ID())
	}
	return proposal, nil
}
