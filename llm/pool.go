package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ideaforge/engine/llm/circuitbreaker"
	"github.com/ideaforge/engine/llm/retry"
	"github.com/ideaforge/engine/types"
)

// PoolConfig controls the wrapping every registered provider gets.
type PoolConfig struct {
	// ConcurrencyCap is the per-provider in-flight request cap (§5
	// Backpressure, default 8).
	ConcurrencyCap int64
	// QueueWait bounds how long a call waits for a semaphore slot before
	// failing ProviderBusy (default 30s).
	QueueWait time.Duration
	// Breaker is the per-provider circuit breaker config; nil uses
	// circuitbreaker.DefaultConfig().
	Breaker *circuitbreaker.Config
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConcurrencyCap: 8,
		QueueWait:      30 * time.Second,
	}
}

type entry struct {
	provider Provider
	sem      *semaphore.Weighted
	breaker  circuitbreaker.CircuitBreaker
	retryer  retry.Retryer
	cfg      PoolConfig
}

// Pool is the Provider Client Pool (C1): a registry of named providers,
// each wrapped with a concurrency-limiting semaphore, a circuit breaker,
// and a bounded retryer, in that order (§4.1).
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		entries: make(map[string]*entry),
		logger:  logger.With(zap.String("component", "provider_pool")),
	}
}

// Register adds provider under its Name() with the given wrapping config.
// Registering the same name twice replaces the prior entry.
func (p *Pool) Register(provider Provider, cfg PoolConfig) {
	if cfg.ConcurrencyCap <= 0 {
		cfg.ConcurrencyCap = DefaultPoolConfig().ConcurrencyCap
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = DefaultPoolConfig().QueueWait
	}
	bcfg := cfg.Breaker
	if bcfg == nil {
		bcfg = circuitbreaker.DefaultConfig()
	}

	name := provider.Name()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[name] = &entry{
		provider: provider,
		sem:      semaphore.NewWeighted(cfg.ConcurrencyCap),
		breaker:  circuitbreaker.NewCircuitBreaker(bcfg, p.logger.With(zap.String("provider", name))),
		retryer: retry.NewBackoffRetryer(&retry.RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     4 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			RetryableErrors: []error{
				types.NewError(types.Timeout, ""),
				types.NewError(types.RateLimited, ""),
				types.NewError(types.TransportError, ""),
				types.NewError(types.ProviderUnavailable, ""),
			},
		}, p.logger.With(zap.String("provider", name))),
		cfg: cfg,
	}
}

func (p *Pool) lookup(name string) (*entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[name]
	if !ok {
		return nil, types.NewError(types.ProviderUnavailable, "provider %q is not registered", name).WithProvider(name)
	}
	return e, nil
}

// Call dispatches req to the named provider, applying the concurrency cap,
// circuit breaker, and retry policy. No automatic failover across
// providers (§4.1 Selection).
func (p *Pool) Call(ctx context.Context, name string, req ChatRequest) (ChatResponse, error) {
	e, err := p.lookup(name)
	if err != nil {
		return ChatResponse{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.QueueWait)
	defer cancel()
	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		return ChatResponse{}, types.NewError(types.ProviderBusy,
			"provider %q has no free slot after %s", name, e.cfg.QueueWait).WithProvider(name)
	}
	defer e.sem.Release(1)

	start := time.Now()
	result, callErr := e.breaker.CallWithResult(ctx, func() (any, error) {
		return retry.DoWithResultTyped(e.retryer, ctx, func() (ChatResponse, error) {
			return e.provider.Call(ctx, req)
		})
	})
	if callErr != nil {
		if callErr == circuitbreaker.ErrCircuitOpen || callErr == circuitbreaker.ErrTooManyCallsInHalfOpen {
			return ChatResponse{}, types.NewError(types.ProviderUnavailable, "%s", callErr.Error()).
				WithProvider(name).WithRetryable(true)
		}
		return ChatResponse{}, callErr
	}

	resp, ok := result.(ChatResponse)
	if !ok {
		return ChatResponse{}, types.NewError(types.Internal, "unexpected result type from provider %q", name).WithProvider(name)
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

// HealthCheck runs the named provider's probe without going through the
// breaker or retryer — a failing probe is informational, it never evicts
// the provider (§4.1 Health).
func (p *Pool) HealthCheck(ctx context.Context, name string) (HealthStatus, error) {
	e, err := p.lookup(name)
	if err != nil {
		return HealthStatus{}, err
	}
	return e.provider.IsHealthy(ctx), nil
}

// Names lists every registered provider name.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.entries))
	for n := range p.entries {
		names = append(names, n)
	}
	return names
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(%d providers)", len(p.entries))
}
