package pipeline

import (
	"context"
	"time"

	"github.com/VAnkata19/TraderAI/pkg/broker"
	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/notify"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

// Stage names, in execution order.
const (
	StageRetrieveNews      = "retrieve_news"
	StageRetrieveChart     = "retrieve_chart"
	StageRetrievePortfolio = "retrieve_portfolio"
	StageAnalyze           = "analyze"
	StageExecute           = "execute"
)

// Task names used by the analyze stage.
const (
	TaskNewsSummary  = "news_summary"
	TaskChartSummary = "chart_summary"
	TaskDecision     = "decision"
)

// Fallback and placeholder texts.
const (
	NewsSummaryFallback  = "Unable to retrieve news sentiment (timeout). Proceeding with neutral assumption."
	ChartSummaryFallback = "Unable to retrieve chart analysis (timeout). Proceeding with neutral assumption."
	NoNewsPlaceholder    = "No recent news available."
	NoChartPlaceholder   = "No chart data available."
)

// Stage statuses recorded in StageLog.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// NewsProvider returns raw news text for a symbol.
type NewsProvider interface {
	NewsContext(ctx context.Context, symbol string) (string, error)
}

// ChartProvider returns a textual rendering of recent price history.
type ChartProvider interface {
	ChartContext(ctx context.Context, symbol string) (string, error)
}

// PortfolioProvider returns account, price and position lines for a symbol.
type PortfolioProvider interface {
	PortfolioContext(ctx context.Context, symbol string) (string, error)
}

// Summarizer condenses raw news and chart text.
type Summarizer interface {
	SummarizeNews(ctx context.Context, symbol, newsContext string) (string, error)
	SummarizeChart(ctx context.Context, symbol, chartContext string) (string, error)
}

// Decider proposes a trading action.
type Decider interface {
	Decide(ctx context.Context, in decision.Input) (decision.Decision, error)
}

// Holdings reports the current whole-share position for a symbol.
type Holdings interface {
	HeldQuantity(ctx context.Context, symbol string) (int, error)
}

// OrderPlacer submits market orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error)
}

// Notifier receives an event after each successful order.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

// Collaborators groups everything the pipeline reaches outside itself.
// Notifier is optional.
type Collaborators struct {
	News       NewsProvider
	Chart      ChartProvider
	Portfolio  PortfolioProvider
	Summarizer Summarizer
	Decider    Decider
	Holdings   Holdings
	Orders     OrderPlacer
	Notifier   Notifier
}

// Timeouts bounds each LLM call of the analyze stage.
type Timeouts struct {
	NewsSummary  time.Duration
	ChartSummary time.Duration
	Decision     time.Duration
}

// DefaultTimeouts returns 30 seconds for every call.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		NewsSummary:  30 * time.Second,
		ChartSummary: 30 * time.Second,
		Decision:     30 * time.Second,
	}
}

// UniformTimeouts uses d for every call.
func UniformTimeouts(d time.Duration) Timeouts {
	return Timeouts{NewsSummary: d, ChartSummary: d, Decision: d}
}

// Request identifies one evaluation and the budget it runs under.
type Request struct {
	Symbol           string
	ActionsUsedToday int
	MaxActionsPerDay int
}

// TradeEvaluation is the record threaded through one run.
type TradeEvaluation struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"ticker"`

	NewsContext      string `json:"news_context"`
	ChartContext     string `json:"chart_context"`
	PortfolioContext string `json:"portfolio_context"`

	NewsSummary  string `json:"news_summary"`
	ChartSummary string `json:"chart_summary"`

	// Proposed is the action returned by the decide call before gating.
	Proposed   decision.Action `json:"proposed"`
	Decision   decision.Action `json:"decision"`
	Quantity   int             `json:"quantity"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`

	Downgraded      bool   `json:"downgraded"`
	DowngradeReason string `json:"downgrade_reason,omitempty"`

	ActionsUsedToday int    `json:"actions_used_today"`
	MaxActionsPerDay int    `json:"max_actions_per_day"`
	Executed         bool   `json:"executed"`
	OrderID          string `json:"order_id,omitempty"`
	OrderResult      string `json:"order_result,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Stages    []StageLog    `json:"stages"`
}

// OrderAttempted reports whether the execute stage submitted an order.
func (e *TradeEvaluation) OrderAttempted() bool {
	return e.OrderResult != ""
}

// StageLog records what happened in each stage.
type StageLog struct {
	Stage     string        `json:"stage"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Notes     string        `json:"notes,omitempty"`
	Tasks     []task.Result `json:"-"`
}
