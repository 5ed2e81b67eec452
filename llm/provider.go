package llm

import "context"

// Provider is the capability every registered LLM client implements
// (§4.1). Implementations live under llm/providers/*.
type Provider interface {
	// Name is the registry key this provider is reachable under
	// (Claude, LMStudio, OpenRouter, NanoGpt, ...).
	Name() string

	// Call issues one completion request. Deadline in req is honored by
	// the underlying transport; exceeding it surfaces types.Timeout.
	Call(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// IsHealthy runs the provider's lightweight probe within deadline.
	IsHealthy(ctx context.Context) HealthStatus
}
