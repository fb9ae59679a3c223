// Package orchestrator wires the decision pipeline end to end: select
// workers, collect proposals, validate, cross-validate, form consensus,
// arbitrate, record. The orchestrator is the only component holding
// authority, memory and the audit trail; workers stay stateless and never
// see any of them.
//
// One orchestrator is constructed per process by the caller and is safe for
// concurrent Process calls. There is no package-level instance.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/conclave/pkg/authority"
	"github.com/Mindburn-Labs/conclave/pkg/collect"
	"github.com/Mindburn-Labs/conclave/pkg/consensus"
	"github.com/Mindburn-Labs/conclave/pkg/crossval"
	"github.com/Mindburn-Labs/conclave/pkg/ledger"
	"github.com/Mindburn-Labs/conclave/pkg/memory"
	"github.com/Mindburn-Labs/conclave/pkg/observability"
	"github.com/Mindburn-Labs/conclave/pkg/policy"
	"github.com/Mindburn-Labs/conclave/pkg/registry"
	"github.com/Mindburn-Labs/conclave/pkg/safety"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// MemoryKeyLastDecision is where the orchestrator notes a compact summary of
// the most recent decision.
const MemoryKeyLastDecision = "last_decision"

// Orchestrator supervises the full decision lifecycle.
type Orchestrator struct {
	kernel    *policy.Kernel
	registry  registry.Registry
	validator *safety.Validator
	collector *collect.Collector
	scorer    *crossval.Validator
	builder   *consensus.Builder
	arbiter   *authority.Arbiter
	ledger    *ledger.Ledger
	memory    memory.Store
	obs       *observability.Provider
	logger    *slog.Logger
	clock     func() time.Time

	workerTimeout time.Duration
	maxParallel   int
	limiter       *rate.Limiter
	relevance     consensus.RelevanceFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry supplies the worker pool. Without it the orchestrator starts
// with an empty in-memory registry.
func WithRegistry(r registry.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithLedger replaces the default in-memory audit ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.ledger = l
		}
	}
}

// WithMemory replaces the default in-memory shared store.
func WithMemory(m memory.Store) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.memory = m
		}
	}
}

// WithRelevance wires a task-relevance model into consensus scoring.
func WithRelevance(f consensus.RelevanceFunc) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.relevance = f
		}
	}
}

// WithClock overrides timestamping and duration measurement for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObservability attaches a telemetry provider. Nil is valid and means no
// telemetry.
func WithObservability(p *observability.Provider) Option {
	return func(o *Orchestrator) { o.obs = p }
}

// WithWorkerTimeout bounds each worker invocation (Think and CrossValidate).
func WithWorkerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.workerTimeout = d
		}
	}
}

// WithMaxParallel bounds concurrent worker invocations per stage.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithRateLimiter throttles proposal solicitation.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// New constructs an orchestrator around the policy kernel. A nil kernel uses
// the baseline defaults. The returned orchestrator is ready for concurrent
// Process calls.
func New(kernel *policy.Kernel, opts ...Option) (*Orchestrator, error) {
	if kernel == nil {
		kernel = policy.Default()
	}

	o := &Orchestrator{
		kernel:        kernel,
		workerTimeout: collect.DefaultCallTimeout,
		relevance:     consensus.NeutralRelevance,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	validator, err := safety.NewValidator(kernel)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: safety validator: %w", err)
	}
	o.validator = validator

	if o.registry == nil {
		o.registry = registry.NewInMemoryRegistry()
	}
	if o.memory == nil {
		o.memory = memory.NewInMemoryStore()
	}
	if o.ledger == nil {
		l, err := ledger.New(context.Background())
		if err != nil {
			return nil, fmt.Errorf("orchestrator: ledger: %w", err)
		}
		o.ledger = l
	}
	if o.logger == nil {
		o.logger = observability.NewLogger("orchestrator")
	}

	o.collector = collect.New(
		collect.WithCallTimeout(o.workerTimeout),
		collect.WithMaxParallel(o.maxParallel),
		collect.WithRateLimiter(o.limiter),
	)
	o.scorer = crossval.New(
		crossval.WithCallTimeout(o.workerTimeout),
		crossval.WithMaxParallel(o.maxParallel),
	)
	o.builder = consensus.New(consensus.WithRelevance(o.relevance))
	o.arbiter = authority.NewArbiter(kernel.MinConsensus(), func(p *worker.Proposal) (bool, string) {
		v := o.validator.Validate(p)
		return v.Accepted, v.Reason
	})

	return o, nil
}

// Process runs one task through the pipeline and always returns a decision:
// pipeline failures of any shape (worker loss, panics, a broken audit store)
// degrade to a synthetic denied decision carrying the error text, never to an
// error return.
func (o *Orchestrator) Process(ctx context.Context, task string, taskContext map[string]any) *authority.Decision {
	start := o.clock()
	taskID := uuid.New().String()

	ctx, done := o.obs.TrackDecision(ctx, task)

	o.logger.InfoContext(ctx, "task accepted", "task_id", taskID)

	outcome, retained, runErr := o.run(ctx, taskID, task, taskContext)
	if runErr != nil {
		o.logger.ErrorContext(ctx, "pipeline degraded", "task_id", taskID, "error", runErr)
		retained = []*worker.Proposal{}
	}

	decision := &authority.Decision{
		ID:              uuid.New().String(),
		TaskID:          taskID,
		Proposals:       retained,
		FinalDecision:   outcome.FinalDecision,
		Verdict:         outcome.Verdict,
		Reasoning:       outcome.Reasoning,
		Contributions:   outcome.Contributions,
		Reproducibility: outcome.Reproducibility,
		Duration:        o.clock().Sub(start),
		CreatedAt:       o.clock().UTC(),
	}

	if _, err := o.ledger.Append(ctx, decision); err != nil {
		// No authority without an audit trail: an unrecordable approval
		// becomes a denial.
		o.logger.ErrorContext(ctx, "audit append failed", "task_id", taskID, "error", err)
		appendErr := fmt.Errorf("audit append failed: %w", err)
		degraded := authority.Degraded(appendErr)
		decision = &authority.Decision{
			ID:            uuid.New().String(),
			TaskID:        taskID,
			Proposals:     []*worker.Proposal{},
			FinalDecision: degraded.FinalDecision,
			Verdict:       degraded.Verdict,
			Reasoning:     degraded.Reasoning,
			Contributions: degraded.Contributions,
			Duration:      o.clock().Sub(start),
			CreatedAt:     o.clock().UTC(),
		}
		runErr = appendErr
	}

	o.noteDecision(ctx, decision)

	observability.SpanFromContext(ctx).SetAttributes(observability.DecisionAttrs(
		decision.ID, taskID, string(decision.Verdict),
		len(decision.Proposals), decision.Reproducibility)...)

	done(string(decision.Verdict), runErr)
	o.logger.InfoContext(ctx, "decision recorded",
		"task_id", taskID,
		"decision_id", decision.ID,
		"verdict", decision.Verdict,
		"proposals", len(decision.Proposals),
		"reproducibility", decision.Reproducibility,
	)
	return decision
}

// run executes the pipeline stages on settled local data and converts panics
// into degraded outcomes.
func (o *Orchestrator) run(ctx context.Context, taskID, task string, taskContext map[string]any) (outcome authority.Outcome, retained []*worker.Proposal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			outcome = authority.Degraded(err)
			retained = nil
		}
	}()

	selected := o.registry.Select(task)
	o.logger.DebugContext(ctx, "workers selected", "task_id", taskID, "count", len(selected))

	batch := o.collector.Collect(ctx, selected, task, taskContext)
	for _, failure := range batch.Failures() {
		o.logger.WarnContext(ctx, "worker excluded",
			"task_id", taskID, "worker_id", failure.WorkerID, "error", failure.Err)
		o.obs.RecordWorkerFailure(ctx, failure.WorkerID, string(failure.Kind))
		observability.AddSpanEvent(ctx, "worker excluded",
			observability.WorkerAttrs(failure.WorkerID, string(failure.Kind))...)
	}

	// Safety gate: violations drop the proposal before any scoring.
	safe := make([]*worker.Proposal, 0, len(batch.Results))
	for _, p := range batch.Proposals() {
		verdict := o.validator.Validate(p)
		if !verdict.Accepted {
			o.logger.WarnContext(ctx, "proposal rejected",
				"task_id", taskID, "worker_id", p.WorkerID, "rule", verdict.Rule, "reason", verdict.Reason)
			continue
		}
		safe = append(safe, p)
	}

	// Reproducibility gate: judged by every worker of another kind in the
	// full pool, not just the selected subset.
	pool := o.registry.List()
	retained = make([]*worker.Proposal, 0, len(safe))
	for _, p := range safe {
		result := o.scorer.Score(ctx, p, pool)
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		p.Metadata[worker.MetadataCrossValidationScore] = result.Score
		if result.Failures > 0 {
			o.logger.DebugContext(ctx, "judgments failed",
				"task_id", taskID, "worker_id", p.WorkerID, "failures", result.Failures)
		}
		if result.Score >= o.kernel.MinReproducibility() {
			retained = append(retained, p)
			continue
		}
		o.logger.WarnContext(ctx, "proposal not reproducible",
			"task_id", taskID, "worker_id", p.WorkerID,
			"score", result.Score, "required", o.kernel.MinReproducibility())
	}

	formed := o.builder.Form(task, retained)
	o.logger.DebugContext(ctx, "consensus formed",
		"task_id", taskID, "strength", formed.Strength, "candidates", len(formed.Ranked))
	leaderID := ""
	if formed.Leading != nil {
		leaderID = formed.Leading.WorkerID
	}
	observability.AddSpanEvent(ctx, "consensus formed",
		observability.ConsensusAttrs(formed.Strength, leaderID)...)

	return o.arbiter.Decide(formed), retained, nil
}

// noteDecision records a compact summary of the decision in shared memory.
// Best effort: memory is a convenience surface, not part of the audit trail.
func (o *Orchestrator) noteDecision(ctx context.Context, d *authority.Decision) {
	note := map[string]any{
		"decision_id":     d.ID,
		"task_id":         d.TaskID,
		"verdict":         string(d.Verdict),
		"final_decision":  d.FinalDecision,
		"reproducibility": d.Reproducibility,
		"recorded_at":     d.CreatedAt.Format(time.RFC3339Nano),
	}
	if err := o.memory.Set(ctx, MemoryKeyLastDecision, note); err != nil {
		o.logger.WarnContext(ctx, "memory note failed", "decision_id", d.ID, "error", err)
	}
}

// TrailEntry is one row of the audit trail summary.
type TrailEntry struct {
	Timestamp       time.Time         `json:"timestamp"`
	Verdict         authority.Verdict `json:"verdict"`
	ProposalCount   int               `json:"proposal_count"`
	Reproducibility float64           `json:"reproducibility"`
}

// AuditTrail returns summaries of at most limit most-recent decisions,
// oldest first. A non-positive limit defaults to 100.
func (o *Orchestrator) AuditTrail(ctx context.Context, limit int) ([]TrailEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := o.ledger.Tail(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: audit trail: %w", err)
	}

	entries := make([]TrailEntry, len(records))
	for i, rec := range records {
		entries[i] = TrailEntry{
			Timestamp:       rec.Timestamp,
			Verdict:         rec.Verdict,
			ProposalCount:   rec.ProposalCount,
			Reproducibility: rec.Reproducibility,
		}
	}
	return entries, nil
}

// Ledger exposes the audit ledger for verification and export.
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }

// Health summarizes recent decision outcomes from the in-process tracker.
// Without an attached observability provider the snapshot is empty.
func (o *Orchestrator) Health() observability.HealthSnapshot {
	return o.obs.Health().Snapshot()
}

// Registry exposes the worker pool.
func (o *Orchestrator) Registry() registry.Registry { return o.registry }

// Memory exposes the shared store. Orchestrator-owned; never hand it to a
// worker.
func (o *Orchestrator) Memory() memory.Store { return o.memory }

// GetMemory reads one shared-memory key.
func (o *Orchestrator) GetMemory(ctx context.Context, key string) (any, error) {
	return o.memory.Get(ctx, key)
}

// SetMemory writes one shared-memory key.
func (o *Orchestrator) SetMemory(ctx context.Context, key string, value any) error {
	return o.memory.Set(ctx, key, value)
}
