package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "DEEPSEEK_API_KEY",
	"TAVILY_API_KEY", "ALPACA_API_KEY", "ALPACA_SECRET_KEY", "LLM_PROVIDER", "LLM_MODEL",
	"LLM_TEMPERATURE", "TICKERS", "BROKER", "MAX_ACTIONS_PER_DAY", "RUN_INTERVAL_SECONDS",
	"SYMBOL_CONCURRENCY", "CHAIN_TIMEOUT_SECONDS", "ALPACA_BASE_URL", "ALPACA_DATA_URL",
	"ALPACA_RATE_LIMIT_PER_MINUTE", "QUOTE_CACHE_TTL_SECONDS", "HISTORICAL_CACHE_TTL_SECONDS",
	"NEWS_RSS_URL", "NEWS_MAX_ARTICLES", "DISCORD_WEBHOOK_URL", "DATA_DIR", "DATABASE_URL",
	"HTTP_ADDR", "PYROSCOPE_SERVER_ADDRESS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(cfg.Trading.Tickers, ","); got != "AAPL,MSFT,GOOGL" {
		t.Errorf("tickers = %s", got)
	}
	if cfg.Trading.MaxActionsPerDay != 5 {
		t.Errorf("max actions = %d", cfg.Trading.MaxActionsPerDay)
	}
	if cfg.RunInterval() != 300*time.Second {
		t.Errorf("interval = %s", cfg.RunInterval())
	}
	if cfg.ChainTimeout() != 30*time.Second {
		t.Errorf("chain timeout = %s", cfg.ChainTimeout())
	}
	if cfg.Alpaca.BaseURL != "https://paper-api.alpaca.markets" || cfg.Alpaca.RateLimitPerMinute != 180 {
		t.Errorf("unexpected alpaca defaults: %+v", cfg.Alpaca)
	}
	if cfg.Routing.Default != (RouteTarget{Adapter: "openai", Model: "gpt-4o"}) {
		t.Errorf("default route = %+v", cfg.Routing.Default)
	}
	if cfg.FilePath != filepath.Join(home, ".trader", "config.yaml") {
		t.Errorf("file path = %s", cfg.FilePath)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`api_keys:
  openai: file-openai
  anthropic: file-ant
llm:
  model: claude-sonnet-4-20250514
trading:
  tickers: [tsla, nvda]
  max_actions_per_day: 2
routing:
  chains:
    decision:
      model: claude-opus-4-20250514
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("MAX_ACTIONS_PER_DAY", "-1")
	t.Setenv("TICKERS", " amd, AMD ,intc,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKeys.OpenAI != "env-openai" {
		t.Errorf("env should win over file, got %q", cfg.APIKeys.OpenAI)
	}
	if cfg.APIKeys.Anthropic != "file-ant" {
		t.Errorf("file key should be used, got %q", cfg.APIKeys.Anthropic)
	}
	if got := strings.Join(cfg.Trading.Tickers, ","); got != "AMD,INTC" {
		t.Errorf("tickers = %s", got)
	}
	if cfg.Trading.MaxActionsPerDay != -1 {
		t.Errorf("max actions = %d", cfg.Trading.MaxActionsPerDay)
	}
	if !cfg.HasAdapter("anthropic") || cfg.HasAdapter("google") || !cfg.HasAdapter("mock") {
		t.Errorf("unexpected adapter availability")
	}

	route := cfg.Routing.Route(ChainDecision)
	if route.Adapter != "anthropic" || route.Model != "claude-opus-4-20250514" {
		t.Errorf("decision route = %+v", route)
	}
	if got := cfg.Routing.Route(ChainNewsSummary); got.Model != "claude-sonnet-4-20250514" {
		t.Errorf("news route = %+v", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"MAX_ACTIONS_PER_DAY":   "-2",
		"RUN_INTERVAL_SECONDS":  "0",
		"CHAIN_TIMEOUT_SECONDS": "abc",
		"BROKER":                "robinhood",
		"LLM_TEMPERATURE":       "warm",
	}
	for env, val := range cases {
		t.Run(env, func(t *testing.T) {
			setHomeEnv(t, t.TempDir())
			clearEnv(t)
			t.Setenv(env, val)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", env, val)
			}
		})
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	setHomeEnv(t, t.TempDir())
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("trading: [oops"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProviderForModel(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":                   "openai",
		"o3-mini":                  "openai",
		"claude-sonnet-4-20250514": "anthropic",
		"gemini-2.5-flash":         "google",
		"deepseek-chat":            "deepseek",
		"mock-1":                   "mock",
	}
	for model, want := range cases {
		if got := ProviderForModel(model); got != want {
			t.Errorf("ProviderForModel(%s) = %s, want %s", model, got, want)
		}
	}
}

func TestLoadRoutingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte(`retry:
  max_retries: 4
  base_backoff_ms: 500
  max_backoff_ms: 100
fallback:
  allow_fallback: true
  fallback_chain:
    openai:
      - adapter: anthropic
        model: claude-sonnet-4-20250514
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadRoutingConfig(path, LLMConfig{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retry.MaxRetries != 4 || cfg.Retry.MaxBackoffMs != 500 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if len(cfg.Fallback.FallbackChain["openai"]) != 1 {
		t.Errorf("fallback chain not parsed")
	}
	if cfg.Default.Adapter != "openai" {
		t.Errorf("default adapter = %s", cfg.Default.Adapter)
	}
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}
