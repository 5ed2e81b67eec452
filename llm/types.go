package llm

import "time"

// ChatRequest is the uniform call shape C1 presents to every provider
// (§4.1): call(prompt, modelHint, maxTokens, temperature, deadline).
type ChatRequest struct {
	Prompt      string
	ModelHint   string
	MaxTokens   int
	Temperature float64
	Deadline    time.Time
}

// ChatResponse is what a successful provider call returns.
type ChatResponse struct {
	Content      string
	TokensUsed   int
	ProviderName string
	Latency      time.Duration
}

// HealthStatus is the result of a provider's lightweight probe (§4.1).
type HealthStatus struct {
	Healthy   bool
	Latency   time.Duration
	CheckedAt time.Time
	Error     string
}
