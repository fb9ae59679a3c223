package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes for the decision pipeline.
var (
	AttrTask    = attribute.Key("conclave.task")
	AttrTaskID  = attribute.Key("conclave.task.id")
	AttrVerdict = attribute.Key("conclave.verdict")

	AttrDecisionID      = attribute.Key("conclave.decision.id")
	AttrProposalCount   = attribute.Key("conclave.decision.proposal_count")
	AttrReproducibility = attribute.Key("conclave.decision.reproducibility")
	AttrStrength        = attribute.Key("conclave.consensus.strength")

	AttrWorkerID   = attribute.Key("conclave.worker.id")
	AttrWorkerKind = attribute.Key("conclave.worker.kind")

	AttrPolicyVersion = attribute.Key("conclave.policy.version")
	AttrSafetyRule    = attribute.Key("conclave.safety.rule")
)

// DecisionAttrs assembles the attribute set for a completed decision.
func DecisionAttrs(decisionID, taskID, verdict string, proposals int, reproducibility float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDecisionID.String(decisionID),
		AttrTaskID.String(taskID),
		AttrVerdict.String(verdict),
		AttrProposalCount.Int(proposals),
		AttrReproducibility.Float64(reproducibility),
	}
}

// WorkerAttrs assembles the attribute set for one worker invocation.
func WorkerAttrs(workerID, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrWorkerID.String(workerID),
		AttrWorkerKind.String(kind),
	}
}

// ConsensusAttrs assembles the attribute set for a formed consensus.
func ConsensusAttrs(strength float64, leaderID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrStrength.Float64(strength),
		AttrWorkerID.String(leaderID),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the current span when non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
