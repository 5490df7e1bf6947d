package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Chain names routed by RoutingConfig.
const (
	ChainNewsSummary  = "news_summary"
	ChainChartSummary = "chart_summary"
	ChainDecision     = "decision"
)

// RoutingConfig maps each LLM chain to an adapter and model.
type RoutingConfig struct {
	Default  RouteTarget            `yaml:"default"`
	Chains   map[string]RouteTarget `yaml:"chains,omitempty"`
	Retry    RetryConfig            `yaml:"retry,omitempty"`
	Fallback FallbackConfig         `yaml:"fallback,omitempty"`
}

// RouteTarget specifies an adapter and model combination.
type RouteTarget struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig defines adapter/model fallbacks.
type FallbackConfig struct {
	AllowFallback bool                     `yaml:"allow_fallback,omitempty"`
	FallbackChain map[string][]RouteTarget `yaml:"fallback_chain,omitempty"`
}

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string, llm LLMConfig) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults(llm)
	return &cfg, nil
}

// Route returns the target for a chain, falling back to the default route.
func (r *RoutingConfig) Route(chain string) RouteTarget {
	if r == nil {
		return RouteTarget{}
	}
	target, ok := r.Chains[chain]
	if !ok {
		return r.Default
	}
	switch {
	case target.Model == "":
		target.Model = r.Default.Model
		if target.Adapter == "" {
			target.Adapter = r.Default.Adapter
		}
	case target.Adapter == "":
		target.Adapter = ProviderForModel(target.Model)
	}
	return target
}

// ProviderForModel infers the adapter that serves a model name.
func ProviderForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"):
		return "google"
	case strings.HasPrefix(m, "deepseek"):
		return "deepseek"
	case strings.HasPrefix(m, "mock"):
		return "mock"
	default:
		return "openai"
	}
}

func (r *RoutingConfig) applyDefaults(llm LLMConfig) {
	if r == nil {
		return
	}
	if r.Default.Model == "" {
		r.Default.Model = llm.Model
	}
	if r.Default.Adapter == "" {
		r.Default.Adapter = llm.Provider
	}
	if r.Default.Adapter == "" {
		r.Default.Adapter = ProviderForModel(r.Default.Model)
	}
	if r.Retry.MaxRetries == 0 {
		r.Retry.MaxRetries = 2
	}
	if r.Retry.BaseBackoffMs == 0 {
		r.Retry.BaseBackoffMs = 200
	}
	if r.Retry.MaxBackoffMs == 0 {
		r.Retry.MaxBackoffMs = 2000
	}
	if r.Retry.MaxBackoffMs < r.Retry.BaseBackoffMs {
		r.Retry.MaxBackoffMs = r.Retry.BaseBackoffMs
	}
}
