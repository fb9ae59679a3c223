package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "conclave", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
	require.False(t, config.Insecure)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Accessors stay usable when disabled.
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
	require.NotNil(t, p.Health())
}

func TestTrackDecision(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx, done := p.TrackDecision(context.Background(), "restart the ingest service")
	require.NotNil(t, ctx)

	time.Sleep(time.Millisecond)
	done("approved", nil)

	snap := p.Health().Snapshot()
	require.Equal(t, 1, snap.Decisions)
	require.Equal(t, 1, snap.ByVerdict["approved"])
	require.Equal(t, 1.0, snap.ApprovalRate)
}

func TestTrackDecisionWithError(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	_, done := p.TrackDecision(context.Background(), "task")
	done("denied", errors.New("registry unavailable"))

	snap := p.Health().Snapshot()
	require.Equal(t, 1, snap.ByVerdict["denied"])
	require.Equal(t, 0.0, snap.ApprovalRate)
}

func TestNilProviderIsNoOp(t *testing.T) {
	var p *Provider

	ctx, done := p.TrackDecision(context.Background(), "task")
	require.NotNil(t, ctx)
	done("approved", nil)

	p.RecordWorkerFailure(ctx, "w1", "reasoning")
	require.Nil(t, p.Health())
	require.NoError(t, p.Shutdown(ctx))
}

func TestRecordWorkerFailure(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	// No instrument when disabled; must not panic.
	p.RecordWorkerFailure(context.Background(), "w1", "critique")
}

func TestShutdown(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestDecisionHealthWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := NewDecisionHealth().WithClock(func() time.Time { return now })

	h.Record("approved", 10*time.Millisecond)
	h.Record("denied", 20*time.Millisecond)

	// Advance past the window; old observations drop out of the snapshot.
	now = now.Add(2 * time.Hour)
	h.Record("pending", 30*time.Millisecond)

	snap := h.Snapshot()
	require.Equal(t, 1, snap.Decisions)
	require.Equal(t, 1, snap.ByVerdict["pending"])
	require.Zero(t, snap.ByVerdict["approved"])
}

func TestDecisionHealthP99(t *testing.T) {
	h := NewDecisionHealth()
	for i := 1; i <= 100; i++ {
		h.Record("approved", time.Duration(i)*time.Millisecond)
	}

	snap := h.Snapshot()
	require.Equal(t, 100, snap.Decisions)
	require.Equal(t, 100*time.Millisecond, snap.P99Latency)
	require.Equal(t, 1.0, snap.ApprovalRate)
}

func TestDecisionAttrs(t *testing.T) {
	attrs := DecisionAttrs("dec-1", "task-1", "approved", 3, 0.91)
	require.Len(t, attrs, 5)
	require.Equal(t, "conclave.decision.id", string(attrs[0].Key))
	require.Equal(t, "dec-1", attrs[0].Value.AsString())
	require.Equal(t, "approved", attrs[2].Value.AsString())
}

func TestWorkerAttrs(t *testing.T) {
	attrs := WorkerAttrs("w1", "verification")
	require.Len(t, attrs, 2)
	require.Equal(t, "conclave.worker.kind", string(attrs[1].Key))
	require.Equal(t, "verification", attrs[1].Value.AsString())
}

func TestSpanHelpers(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, SpanFromContext(ctx))

	// No span in context; must not panic.
	AddSpanEvent(ctx, "safety.rejected", AttrSafetyRule.String("forbidden_pattern"))
	SetSpanStatus(ctx, errors.New("boom"))
	SetSpanStatus(ctx, nil)
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	require.NotNil(t, logger)
	logger.Info("discarded", "key", "value")
}
