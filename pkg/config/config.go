package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	LLM      LLMConfig      `yaml:"llm"`
	Trading  TradingConfig  `yaml:"trading"`
	Alpaca   AlpacaConfig   `yaml:"alpaca"`
	News     NewsConfig     `yaml:"news"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Routing  *RoutingConfig `yaml:"routing,omitempty"`
	FilePath string         `yaml:"-"`
}

// APIKeysConfig holds provider credentials.
type APIKeysConfig struct {
	Anthropic    string `yaml:"anthropic"`
	OpenAI       string `yaml:"openai"`
	Google       string `yaml:"google"`
	DeepSeek     string `yaml:"deepseek"`
	Tavily       string `yaml:"tavily"`
	AlpacaKey    string `yaml:"alpaca_key"`
	AlpacaSecret string `yaml:"alpaca_secret"`
}

// LLMConfig selects the default model for every chain.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// TradingConfig controls the trading loop.
type TradingConfig struct {
	Tickers             []string `yaml:"tickers"`
	MaxActionsPerDay    int      `yaml:"max_actions_per_day"`
	RunIntervalSeconds  int      `yaml:"run_interval_seconds"`
	Broker              string   `yaml:"broker"`
	SymbolConcurrency   int      `yaml:"symbol_concurrency"`
	ChainTimeoutSeconds int      `yaml:"chain_timeout_seconds"`
}

// AlpacaConfig holds broker and market data settings.
type AlpacaConfig struct {
	BaseURL                   string `yaml:"base_url"`
	DataURL                   string `yaml:"data_url"`
	RateLimitPerMinute        int    `yaml:"rate_limit_per_minute"`
	QuoteCacheTTLSeconds      int    `yaml:"quote_cache_ttl_seconds"`
	HistoricalCacheTTLSeconds int    `yaml:"historical_cache_ttl_seconds"`
}

// NewsConfig controls news retrieval.
type NewsConfig struct {
	RSSURL      string `yaml:"rss_url"`
	MaxArticles int    `yaml:"max_articles"`
}

// NotifyConfig holds notification targets.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
}

// ServerConfig controls the dashboard server and profiling.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	PyroscopeAddress string `yaml:"pyroscope_server_address"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       "gpt-4o",
			Temperature: 0,
		},
		Trading: TradingConfig{
			Tickers:             []string{"AAPL", "MSFT", "GOOGL"},
			MaxActionsPerDay:    5,
			RunIntervalSeconds:  300,
			Broker:              "alpaca",
			SymbolConcurrency:   1,
			ChainTimeoutSeconds: 30,
		},
		Alpaca: AlpacaConfig{
			BaseURL:                   "https://paper-api.alpaca.markets",
			DataURL:                   "https://data.alpaca.markets",
			RateLimitPerMinute:        180,
			QuoteCacheTTLSeconds:      30,
			HistoricalCacheTTLSeconds: 300,
		},
		News: NewsConfig{
			RSSURL:      "https://feeds.finance.yahoo.com/rss/2.0/headline?s={symbol}&region=US&lang=en-US",
			MaxArticles: 10,
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from the config file, a .env file and environment
// variables, in increasing order of precedence. An empty path means
// ~/.trader/config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		configDir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "config.yaml")
	}

	cfg := Default()
	if err := loadFileConfig(path, cfg); err != nil {
		return nil, err
	}
	cfg.FilePath = path

	// .env never overrides variables that are already set.
	_ = godotenv.Load()

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Routing == nil {
		cfg.Routing = &RoutingConfig{}
	}
	cfg.Routing.applyDefaults(cfg.LLM)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the trading loop depends on.
func (c *Config) Validate() error {
	if len(c.Trading.Tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}
	if c.Trading.MaxActionsPerDay < -1 {
		return fmt.Errorf("max_actions_per_day must be -1 (unlimited) or >= 0, got %d", c.Trading.MaxActionsPerDay)
	}
	if c.Trading.RunIntervalSeconds <= 0 {
		return fmt.Errorf("run_interval_seconds must be positive")
	}
	if c.Trading.ChainTimeoutSeconds <= 0 {
		return fmt.Errorf("chain_timeout_seconds must be positive")
	}
	if c.Trading.SymbolConcurrency <= 0 {
		return fmt.Errorf("symbol_concurrency must be positive")
	}
	switch c.Trading.Broker {
	case "alpaca", "paper":
	default:
		return fmt.Errorf("unknown broker %q (want alpaca or paper)", c.Trading.Broker)
	}
	return nil
}

// RunInterval returns the pause between trading cycles.
func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.Trading.RunIntervalSeconds) * time.Second
}

// ChainTimeout returns the deadline applied to each LLM chain.
func (c *Config) ChainTimeout() time.Duration {
	return time.Duration(c.Trading.ChainTimeoutSeconds) * time.Second
}

// QuoteCacheTTL returns how long latest prices are cached.
func (a AlpacaConfig) QuoteCacheTTL() time.Duration {
	return time.Duration(a.QuoteCacheTTLSeconds) * time.Second
}

// HistoricalCacheTTL returns how long bars are cached.
func (a AlpacaConfig) HistoricalCacheTTL() time.Duration {
	return time.Duration(a.HistoricalCacheTTLSeconds) * time.Second
}

// EvidenceDir returns where per-run evidence bundles are written.
func (s StorageConfig) EvidenceDir() string {
	return filepath.Join(s.DataDir, "runs")
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	return c.APIKey(name) != "" || name == "mock"
}

// APIKey returns the key for an LLM provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.APIKeys.Anthropic
	case "openai":
		return c.APIKeys.OpenAI
	case "google":
		return c.APIKeys.Google
	case "deepseek":
		return c.APIKeys.DeepSeek
	default:
		return ""
	}
}

// loadFileConfig reads the config file over cfg, leaving it untouched if the file doesn't exist.
func loadFileConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	k := &cfg.APIKeys
	k.Anthropic = getEnvOrDefault("ANTHROPIC_API_KEY", k.Anthropic)
	k.OpenAI = getEnvOrDefault("OPENAI_API_KEY", k.OpenAI)
	k.Google = getEnvOrDefault("GOOGLE_API_KEY", k.Google)
	k.DeepSeek = getEnvOrDefault("DEEPSEEK_API_KEY", k.DeepSeek)
	k.Tavily = getEnvOrDefault("TAVILY_API_KEY", k.Tavily)
	k.AlpacaKey = getEnvOrDefault("ALPACA_API_KEY", k.AlpacaKey)
	k.AlpacaSecret = getEnvOrDefault("ALPACA_SECRET_KEY", k.AlpacaSecret)

	cfg.LLM.Provider = getEnvOrDefault("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnvOrDefault("LLM_MODEL", cfg.LLM.Model)

	if v := os.Getenv("TICKERS"); v != "" {
		cfg.Trading.Tickers = strings.Split(v, ",")
	}
	cfg.Trading.Tickers = normalizeTickers(cfg.Trading.Tickers)
	cfg.Trading.Broker = strings.ToLower(getEnvOrDefault("BROKER", cfg.Trading.Broker))

	cfg.Alpaca.BaseURL = strings.TrimRight(getEnvOrDefault("ALPACA_BASE_URL", cfg.Alpaca.BaseURL), "/")
	cfg.Alpaca.DataURL = strings.TrimRight(getEnvOrDefault("ALPACA_DATA_URL", cfg.Alpaca.DataURL), "/")
	cfg.News.RSSURL = getEnvOrDefault("NEWS_RSS_URL", cfg.News.RSSURL)
	cfg.Notify.DiscordWebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notify.DiscordWebhookURL)
	cfg.Storage.DataDir = getEnvOrDefault("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Server.Addr = getEnvOrDefault("HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.PyroscopeAddress = getEnvOrDefault("PYROSCOPE_SERVER_ADDRESS", cfg.Server.PyroscopeAddress)

	ints := []struct {
		env string
		dst *int
	}{
		{"MAX_ACTIONS_PER_DAY", &cfg.Trading.MaxActionsPerDay},
		{"RUN_INTERVAL_SECONDS", &cfg.Trading.RunIntervalSeconds},
		{"SYMBOL_CONCURRENCY", &cfg.Trading.SymbolConcurrency},
		{"CHAIN_TIMEOUT_SECONDS", &cfg.Trading.ChainTimeoutSeconds},
		{"ALPACA_RATE_LIMIT_PER_MINUTE", &cfg.Alpaca.RateLimitPerMinute},
		{"QUOTE_CACHE_TTL_SECONDS", &cfg.Alpaca.QuoteCacheTTLSeconds},
		{"HISTORICAL_CACHE_TTL_SECONDS", &cfg.Alpaca.HistoricalCacheTTLSeconds},
		{"NEWS_MAX_ARTICLES", &cfg.News.MaxArticles},
	}
	for _, e := range ints {
		v, err := getEnvInt(e.env, *e.dst)
		if err != nil {
			return err
		}
		*e.dst = v
	}

	temp, err := getEnvFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	if err != nil {
		return err
	}
	cfg.LLM.Temperature = temp
	return nil
}

func normalizeTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(envVar string, defaultValue int) (int, error) {
	val := strings.TrimSpace(os.Getenv(envVar))
	if val == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", envVar, val)
	}
	return n, nil
}

func getEnvFloat(envVar string, defaultValue float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(envVar))
	if val == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", envVar, val)
	}
	return f, nil
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".trader")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
