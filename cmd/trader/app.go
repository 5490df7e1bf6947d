package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/VAnkata19/TraderAI/pkg/adapter"
	"github.com/VAnkata19/TraderAI/pkg/broker"
	"github.com/VAnkata19/TraderAI/pkg/chains"
	"github.com/VAnkata19/TraderAI/pkg/config"
	"github.com/VAnkata19/TraderAI/pkg/dashboard"
	"github.com/VAnkata19/TraderAI/pkg/metrics"
	"github.com/VAnkata19/TraderAI/pkg/notify"
	"github.com/VAnkata19/TraderAI/pkg/pipeline"
	"github.com/VAnkata19/TraderAI/pkg/scheduler"
	"github.com/VAnkata19/TraderAI/pkg/sources"
	"github.com/VAnkata19/TraderAI/pkg/store"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

const paperStartingCash = 100000

// mockDecision keeps dry runs with the mock adapter parseable.
const mockDecision = `{"decision": "HOLD", "quantity": 0, "reasoning": "mock adapter", "confidence": 0.5}`

// tradingBroker is what both the Alpaca client and the paper broker provide.
type tradingBroker interface {
	Name() string
	sources.PortfolioBroker
	sources.BarSource
	pipeline.Holdings
	pipeline.OrderPlacer
}

// app holds the wired collaborators for one process.
type app struct {
	cfg      *config.Config
	adapters []adapter.Adapter
	broker   tradingBroker
	counter  *store.ActionCounter
	journal  store.Journal
	hub      *dashboard.Hub
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func logInfo(format string, args ...any) {
	logs.Infof(format, args...)
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, hub: dashboard.NewHub()}

	adapters, err := createAdapters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapters: %w", err)
	}
	a.adapters = adapters

	a.broker, err = createBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	a.counter = store.NewActionCounter(cfg.Storage.DataDir)
	a.journal, err = a.createJournal()
	if err != nil {
		return nil, err
	}

	caller := chains.NewCaller(adapters, cfg.Routing,
		chains.WithTemperature(cfg.LLM.Temperature),
		chains.WithReportHook(func(chain string, reports []adapter.CallReport) {
			for _, r := range reports {
				if r.Error != "" || r.FallbackUsed {
					logs.Infof("[chains] %s via %s/%s: retries=%d fallback=%t err=%s",
						chain, r.Adapter, r.Model, r.Retries, r.FallbackUsed, r.Error)
				}
			}
		}),
	)

	orchestrator := task.NewOrchestrator(
		task.WithLogger(logInfo),
		task.WithObserver(metrics.ObserveTask),
	)

	a.pipeline, err = pipeline.New(pipeline.Collaborators{
		News:       createNewsFeed(cfg),
		Chart:      sources.NewChartFeed(a.broker),
		Portfolio:  sources.NewPortfolio(a.broker),
		Summarizer: chains.NewSummarizer(caller),
		Decider:    chains.NewDecider(caller),
		Holdings:   a.broker,
		Orders:     a.broker,
		Notifier:   a.createNotifier(),
	},
		pipeline.WithLogger(logInfo),
		pipeline.WithOrchestrator(orchestrator),
		pipeline.WithTimeouts(pipeline.UniformTimeouts(cfg.ChainTimeout())),
		pipeline.WithEvidence(cfg.Storage.EvidenceDir()),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.pipeline, a.counter, a.cfg.Trading.Tickers, a.cfg.Trading.MaxActionsPerDay,
		scheduler.WithLogger(logInfo),
		scheduler.WithInterval(a.cfg.RunInterval()),
		scheduler.WithConcurrency(a.cfg.Trading.SymbolConcurrency),
		scheduler.WithJournal(a.journal),
		scheduler.WithPublisher(a.hub),
		scheduler.WithObserver(observeEvaluation),
		scheduler.WithCycleObserver(metrics.ObserveCycle),
	)
}

func (a *app) server() *dashboard.Server {
	return dashboard.NewServer(a.cfg.Server.Addr, a.hub, a.journal, a.counter, a.cfg.Trading.MaxActionsPerDay)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func (a *app) createJournal() (store.Journal, error) {
	fileLog := store.NewDecisionLog(a.cfg.Storage.DataDir)
	if a.cfg.Storage.DatabaseURL == "" {
		return fileLog, nil
	}
	pg, err := store.OpenPostgresJournal(store.PostgresOption{ConnString: a.cfg.Storage.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to open decision journal: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	return store.Multi{pg, fileLog}, nil
}

func (a *app) createNotifier() pipeline.Notifier {
	targets := notify.Multi{a.hub}
	if d := notify.NewDiscord(a.cfg.Notify.DiscordWebhookURL); d.Enabled() {
		targets = append(targets, d)
	}
	return targets
}

// observeEvaluation feeds finished evaluations into Prometheus.
func observeEvaluation(ev *pipeline.TradeEvaluation) {
	if ev.Proposed != "" {
		metrics.ObserveDecision(ev.Proposed)
	}
	if ev.Downgraded {
		metrics.ObserveDowngrade(ev.DowngradeReason)
	}
	if ev.OrderAttempted() {
		metrics.ObserveOrder(ev.Decision, ev.Executed)
	}
	metrics.SetActionsUsed(map[string]int{ev.Symbol: ev.ActionsUsedToday})
}

func createAdapters(cfg *config.Config) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.APIKeys.Anthropic != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.APIKeys.Anthropic)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	if cfg.APIKeys.OpenAI != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.APIKeys.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	if cfg.APIKeys.Google != "" {
		a, err := adapter.NewGoogleAdapter(cfg.APIKeys.Google)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	if cfg.APIKeys.DeepSeek != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.APIKeys.DeepSeek)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	adapters = append(adapters, adapter.NewMockAdapter().On("What is your trading decision?", mockDecision))

	return adapters, nil
}

func createAlpaca(cfg *config.Config) (*broker.Alpaca, error) {
	return broker.NewAlpaca(cfg.APIKeys.AlpacaKey, cfg.APIKeys.AlpacaSecret,
		broker.WithBaseURL(cfg.Alpaca.BaseURL),
		broker.WithDataURL(cfg.Alpaca.DataURL),
		broker.WithRateLimit(cfg.Alpaca.RateLimitPerMinute),
		broker.WithCacheTTL(cfg.Alpaca.QuoteCacheTTL(), cfg.Alpaca.HistoricalCacheTTL()),
	)
}

func createBroker(cfg *config.Config) (tradingBroker, error) {
	hasKeys := cfg.APIKeys.AlpacaKey != "" && cfg.APIKeys.AlpacaSecret != ""
	switch cfg.Trading.Broker {
	case "paper":
		var opts []broker.PaperOption
		if hasKeys {
			md, err := createAlpaca(cfg)
			if err != nil {
				return nil, err
			}
			opts = append(opts, broker.WithMarketData(md))
		}
		return broker.NewPaper(decimal.NewFromInt(paperStartingCash), opts...), nil
	default:
		if !hasKeys {
			return nil, errors.New("ALPACA_API_KEY and ALPACA_SECRET_KEY are required for the alpaca broker (or set BROKER=paper)")
		}
		client, err := createAlpaca(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func createNewsFeed(cfg *config.Config) *sources.NewsFeed {
	var feeds []sources.NewsSource
	if cfg.APIKeys.Tavily != "" {
		feeds = append(feeds, sources.NewTavilySource(sources.WithTavilyAPIKey(cfg.APIKeys.Tavily)))
	}
	if cfg.News.RSSURL != "" {
		feeds = append(feeds, sources.NewRSSSource(cfg.News.RSSURL, nil))
	}
	return sources.NewNewsFeed(cfg.News.MaxArticles, feeds...)
}
