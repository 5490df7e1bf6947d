package chains

import (
	"context"
	"fmt"
	"time"

	"github.com/VAnkata19/TraderAI/pkg/adapter"
	"github.com/VAnkata19/TraderAI/pkg/config"
)

// Caller routes a chain's prompt to an adapter, retrying transient failures
// with exponential backoff and walking the configured fallback chain.
type Caller struct {
	adapters    map[string]adapter.Adapter
	routing     *config.RoutingConfig
	temperature float64
	onReport    func(chain string, reports []adapter.CallReport)
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithTemperature sets the sampling temperature for every call.
func WithTemperature(t float64) CallerOption {
	return func(c *Caller) {
		c.temperature = t
	}
}

// WithReportHook receives the per-attempt reports of every call.
func WithReportHook(fn func(chain string, reports []adapter.CallReport)) CallerOption {
	return func(c *Caller) {
		c.onReport = fn
	}
}

// NewCaller creates a Caller over the given adapters.
func NewCaller(adapters []adapter.Adapter, routing *config.RoutingConfig, opts ...CallerOption) *Caller {
	c := &Caller{
		adapters: make(map[string]adapter.Adapter, len(adapters)),
		routing:  routing,
	}
	for _, a := range adapters {
		c.adapters[a.Name()] = a
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callTarget struct {
	Adapter string
	Model   string
}

// Call sends one prompt for the named chain.
func (c *Caller) Call(ctx context.Context, chain, system, prompt string) (*adapter.Completion, error) {
	route := c.routing.Route(chain)
	if route.Adapter == "" {
		route.Adapter = config.ProviderForModel(route.Model)
	}

	completion, reports, err := c.callWithPolicy(ctx, route, system, prompt)
	if c.onReport != nil {
		c.onReport(chain, reports)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chain, err)
	}
	return completion, nil
}

func (c *Caller) callWithPolicy(ctx context.Context, route config.RouteTarget, system, prompt string) (*adapter.Completion, []adapter.CallReport, error) {
	targets := buildTargets(route, c.routing)
	retryCfg := retrySettings(c.routing)
	var reports []adapter.CallReport
	var lastErr error

	for idx, target := range targets {
		impl, ok := c.adapters[target.Adapter]
		if !ok {
			lastErr = fmt.Errorf("adapter %s not configured", target.Adapter)
			reports = append(reports, adapter.CallReport{
				Adapter:      target.Adapter,
				Model:        target.Model,
				FallbackUsed: idx > 0,
				Error:        lastErr.Error(),
			})
			continue
		}

		for attempt := 0; attempt <= retryCfg.MaxRetries; attempt++ {
			completion, err := impl.Generate(ctx, adapter.Request{
				Model:       target.Model,
				System:      system,
				Prompt:      prompt,
				Temperature: c.temperature,
			})
			if err == nil {
				reports = append(reports, adapter.CallReport{
					Adapter:      target.Adapter,
					Model:        target.Model,
					Retries:      attempt,
					FallbackUsed: idx > 0,
				})
				return completion, reports, nil
			}

			lastErr = err
			if ctx.Err() != nil {
				return nil, reports, ctx.Err()
			}
			if !adapter.IsTransient(err) || attempt == retryCfg.MaxRetries {
				reports = append(reports, adapter.CallReport{
					Adapter:      target.Adapter,
					Model:        target.Model,
					Retries:      attempt,
					FallbackUsed: idx > 0,
					Error:        err.Error(),
				})
				break
			}

			backoff := computeBackoff(retryCfg.BaseBackoffMs, retryCfg.MaxBackoffMs, attempt)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, reports, err
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("adapter call failed")
	}
	return nil, reports, lastErr
}

func buildTargets(route config.RouteTarget, cfg *config.RoutingConfig) []callTarget {
	targets := []callTarget{{Adapter: route.Adapter, Model: route.Model}}
	if cfg == nil || !cfg.Fallback.AllowFallback {
		return targets
	}
	for _, entry := range resolveFallbackChain(cfg, route) {
		targets = append(targets, callTarget{Adapter: entry.Adapter, Model: entry.Model})
	}
	return targets
}

func resolveFallbackChain(cfg *config.RoutingConfig, route config.RouteTarget) []config.RouteTarget {
	if cfg.Fallback.FallbackChain == nil {
		return nil
	}
	key := fmt.Sprintf("%s/%s", route.Adapter, route.Model)
	if chain, ok := cfg.Fallback.FallbackChain[key]; ok {
		return chain
	}
	return cfg.Fallback.FallbackChain[route.Adapter]
}

func retrySettings(cfg *config.RoutingConfig) config.RetryConfig {
	if cfg == nil {
		return config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 200, MaxBackoffMs: 2000}
	}
	return cfg.Retry
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	limit := time.Duration(maxMs) * time.Millisecond
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
