// Package openaicompat implements llm.Provider against any backend that
// speaks the OpenAI chat-completions wire shape (LMStudio, OpenRouter,
// NanoGpt) with Bearer auth against a configurable base URL.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/llm/providers"
	"github.com/ideaforge/engine/types"
)

type Provider struct {
	name   string
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// New builds an OpenAI-compatible provider registered under name, pointed
// at cfg.BaseURL + "/v1/chat/completions".
func New(name string, cfg providers.Config, logger *zap.Logger) *Provider {
	return &Provider{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutOrDefault()},
		logger: logger.With(zap.String("provider", name)),
	}
}

func (p *Provider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *Provider) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	model := req.ModelHint
	if model == "" {
		model = p.cfg.Model
	}
	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.ArgumentInvalid, "encode request: %v", err).WithProvider(p.name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.TransportError, "build request: %v", err).WithProvider(p.name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return llm.ChatResponse{}, types.NewError(types.Timeout, "%s call deadline exceeded", p.name).WithProvider(p.name)
		}
		return llm.ChatResponse{}, types.NewError(types.TransportError, "%v", err).WithProvider(p.name).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.TransportError, "read response: %v", err).WithProvider(p.name).WithRetryable(true)
	}

	if resp.StatusCode != http.StatusOK {
		return llm.ChatResponse{}, mapError(p.name, resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return llm.ChatResponse{}, types.NewError(types.ParseError, "decode response: %v", err).WithProvider(p.name)
	}
	if len(parsed.Choices) == 0 {
		return llm.ChatResponse{}, types.NewError(types.ParseError, "no choices in response").WithProvider(p.name)
	}

	return llm.ChatResponse{
		Content:      parsed.Choices[0].Message.Content,
		TokensUsed:   parsed.Usage.TotalTokens,
		ProviderName: p.name,
		Latency:      time.Since(start),
	}, nil
}

func mapError(name string, status int, body []byte) error {
	msg := string(body)
	var e chatErrorResp
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.AuthFailure, "%s", msg).WithProvider(name)
	case http.StatusTooManyRequests:
		return types.NewError(types.RateLimited, "%s", msg).WithProvider(name).WithRetryable(true)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.NewError(types.ProviderUnavailable, "%s", msg).WithProvider(name).WithRetryable(true)
	default:
		if status >= 500 {
			return types.NewError(types.ProviderError, "%s", msg).WithProvider(name).WithRetryable(true)
		}
		return types.NewError(types.ProviderError, "%s", msg).WithProvider(name)
	}
}

func (p *Provider) IsHealthy(ctx context.Context) llm.HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return llm.HealthStatus{Healthy: false, Error: err.Error(), CheckedAt: start}
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return llm.HealthStatus{Healthy: false, Error: err.Error(), CheckedAt: time.Now(), Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	return llm.HealthStatus{
		Healthy:   resp.StatusCode == http.StatusOK,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}
}
