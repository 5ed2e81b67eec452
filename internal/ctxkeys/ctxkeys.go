// Package ctxkeys defines typed context keys threaded through request
// handling: trace correlation plus per-call LLM overrides.
package ctxkeys

import "context"

type contextKey string

const (
	traceIDKey            contextKey = "trace_id"
	runIDKey              contextKey = "run_id"
	instructionVersionKey contextKey = "instruction_version"
	providerNameKey       contextKey = "provider_name"
)

// WithTraceID attaches a trace ID for cross-component log correlation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID set by WithTraceID, if any.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRunID attaches the id of the stage run handling this request.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run ID set by WithRunID, if any.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithInstructionVersion records which instruction template version was
// resolved for this call, for log correlation against Instruction Store
// reloads.
func WithInstructionVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, instructionVersionKey, version)
}

// InstructionVersion returns the instruction version set by
// WithInstructionVersion, if any.
func InstructionVersion(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(instructionVersionKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithProviderName attaches a provider-name override to ctx. No component
// of the engine reads it: stages.Service.Start calls the provider named in
// StartRequest.ProviderName.
func WithProviderName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, providerNameKey, name)
}

// ProviderName returns the provider override set by WithProviderName, if any.
func ProviderName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(providerNameKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
