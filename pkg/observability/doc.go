// Package observability provides OpenTelemetry tracing and metrics for the
// decision pipeline, plus the slog construction every component logs through.
//
// # Provider
//
// Initialize at process startup; the default configuration keeps telemetry
// off so embedding the orchestrator as a library never phones home:
//
//	cfg := observability.DefaultConfig()
//	cfg.Enabled = true
//	cfg.OTLPEndpoint = "otel-collector:4317"
//	provider, err := observability.New(ctx, cfg)
//	defer provider.Shutdown(ctx)
//
// Instrument a decision pass:
//
//	ctx, done := provider.TrackDecision(ctx, task)
//	decision := process(ctx, task)
//	done(string(decision.Verdict), nil)
//
// A nil *Provider is valid everywhere and records nothing.
//
// # Logging
//
//	logger := observability.NewLogger("orchestrator")
//	logger.Info("decision recorded", "verdict", v, "task_id", id)
package observability
