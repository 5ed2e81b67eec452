// Package claude implements llm.Provider against Anthropic's Messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/llm/providers"
	"github.com/ideaforge/engine/types"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	anthropicVersion  = "2023-06-01"
	defaultModel      = "claude-3-5-sonnet-20241022"
	defaultMaxTokens  = 4096
	providerName      = "Claude"
)

type Provider struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg providers.Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutOrDefault()},
		logger: logger.With(zap.String("provider", providerName)),
	}
}

func (p *Provider) Name() string { return providerName }

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeResponse struct {
	ID      string                `json:"id"`
	Model   string                `json:"model"`
	Content []claudeContentBlock  `json:"content"`
	Usage   claudeUsage           `json:"usage"`
}

type claudeErrorResp struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

func chooseModel(hint, configured string) string {
	if hint != "" {
		return hint
	}
	if configured != "" {
		return configured
	}
	return defaultModel
}

func chooseMaxTokens(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

// Call issues one Messages API completion request (§4.1's call shape).
func (p *Provider) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	body := claudeRequest{
		Model:       chooseModel(req.ModelHint, p.cfg.Model),
		Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   chooseMaxTokens(req.MaxTokens),
		Temperature: req.Temperature,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.ArgumentInvalid, "encode claude request: %v", err).WithProvider(providerName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.TransportError, "build request: %v", err).WithProvider(providerName)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return llm.ChatResponse{}, types.NewError(types.Timeout, "claude call deadline exceeded").WithProvider(providerName)
		}
		return llm.ChatResponse{}, types.NewError(types.TransportError, "%v", err).WithProvider(providerName).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.ChatResponse{}, types.NewError(types.TransportError, "read response: %v", err).WithProvider(providerName).WithRetryable(true)
	}

	if resp.StatusCode != http.StatusOK {
		return llm.ChatResponse{}, mapClaudeError(resp.StatusCode, readErrMsg(respBody))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return llm.ChatResponse{}, types.NewError(types.ParseError, "decode claude response: %v", err).WithProvider(providerName)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return llm.ChatResponse{
		Content:      text.String(),
		TokensUsed:   parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		ProviderName: providerName,
		Latency:      time.Since(start),
	}, nil
}

func readErrMsg(body []byte) string {
	var e claudeErrorResp
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// mapClaudeError maps an HTTP status + message pair onto the taxonomy in
// §7, including Claude's 529 "overloaded" status which is transient.
func mapClaudeError(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.AuthFailure, "%s", msg).WithProvider(providerName)
	case http.StatusForbidden:
		return types.NewError(types.AuthFailure, "%s", msg).WithProvider(providerName)
	case http.StatusTooManyRequests:
		return types.NewError(types.RateLimited, "%s", msg).WithProvider(providerName).WithRetryable(true)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(msg), "credit") || strings.Contains(strings.ToLower(msg), "quota") {
			return types.NewError(types.RateLimited, "%s", msg).WithProvider(providerName)
		}
		return types.NewError(types.ArgumentInvalid, "%s", msg).WithProvider(providerName)
	case 529:
		return types.NewError(types.ProviderUnavailable, "claude overloaded: %s", msg).WithProvider(providerName).WithRetryable(true)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.NewError(types.ProviderUnavailable, "%s", msg).WithProvider(providerName).WithRetryable(true)
	default:
		if status >= 500 {
			return types.NewError(types.ProviderError, "%s", msg).WithProvider(providerName).WithRetryable(true)
		}
		return types.NewError(types.ProviderError, "%s", msg).WithProvider(providerName)
	}
}

// IsHealthy probes /v1/models, a lightweight unauthenticated-cost endpoint.
func (p *Provider) IsHealthy(ctx context.Context) llm.HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return llm.HealthStatus{Healthy: false, Error: err.Error(), CheckedAt: start}
	}
	p.buildHeaders(req)

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
