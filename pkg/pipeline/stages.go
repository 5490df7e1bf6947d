package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/VAnkata19/TraderAI/pkg/broker"
	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/notify"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

// Each stage returns its own output. Only the driver writes to the
// TradeEvaluation, through the apply methods below.

type contextOutput struct {
	text string
	err  error
}

type analysisOutput struct {
	newsSummary  string
	chartSummary string
	decision     decision.Decision
	results      []task.Result
}

type executionOutput struct {
	action      decision.Action
	quantity    int
	reasoning   string
	downgraded  bool
	reason      string
	executed    bool
	orderID     string
	orderResult string
	actionsUsed int
	status      string
	notes       string
}

func (p *Pipeline) retrieveNews(ctx context.Context, symbol string) contextOutput {
	text, err := p.c.News.NewsContext(ctx, symbol)
	if err != nil {
		p.log("[pipeline] %s: news retrieval failed: %v", symbol, err)
		return contextOutput{text: fmt.Sprintf("News unavailable: %v", err), err: err}
	}
	return contextOutput{text: text}
}

func (p *Pipeline) retrieveChart(ctx context.Context, symbol string) contextOutput {
	text, err := p.c.Chart.ChartContext(ctx, symbol)
	if err != nil {
		p.log("[pipeline] %s: chart retrieval failed: %v", symbol, err)
		return contextOutput{text: fmt.Sprintf("Chart data unavailable: %v", err), err: err}
	}
	return contextOutput{text: text}
}

func (p *Pipeline) retrievePortfolio(ctx context.Context, symbol string) contextOutput {
	text, err := p.c.Portfolio.PortfolioContext(ctx, symbol)
	if err != nil {
		p.log("[pipeline] %s: portfolio retrieval failed: %v", symbol, err)
		return contextOutput{text: fmt.Sprintf("Portfolio unavailable: %v", err), err: err}
	}
	return contextOutput{text: text}
}

// analyze runs both summaries in parallel, then the decision call.
func (p *Pipeline) analyze(ctx context.Context, ev *TradeEvaluation) (analysisOutput, error) {
	symbol := ev.Symbol
	newsInput := orPlaceholder(ev.NewsContext, NoNewsPlaceholder)
	chartInput := orPlaceholder(ev.ChartContext, NoChartPlaceholder)

	summaries := []task.Task[string]{
		task.New(task.Descriptor[string]{
			Name:     TaskNewsSummary,
			Timeout:  p.timeouts.NewsSummary,
			Fallback: NewsSummaryFallback,
		}, func(ctx context.Context) (string, error) {
			return p.c.Summarizer.SummarizeNews(ctx, symbol, newsInput)
		}),
		task.New(task.Descriptor[string]{
			Name:     TaskChartSummary,
			Timeout:  p.timeouts.ChartSummary,
			Fallback: ChartSummaryFallback,
		}, func(ctx context.Context) (string, error) {
			return p.c.Summarizer.SummarizeChart(ctx, symbol, chartInput)
		}),
	}

	var out analysisOutput
	summaryResults, err := task.ExecuteParallelResults(ctx, p.orchestrator, summaries)
	if err != nil {
		return out, err
	}
	out.newsSummary, _ = summaryResults[TaskNewsSummary].Value.(string)
	out.chartSummary, _ = summaryResults[TaskChartSummary].Value.(string)
	out.results = append(out.results, summaryResults[TaskNewsSummary], summaryResults[TaskChartSummary])

	input := decision.Input{
		Symbol:           symbol,
		NewsSummary:      out.newsSummary,
		ChartSummary:     out.chartSummary,
		PortfolioContext: ev.PortfolioContext,
		ActionsUsedToday: ev.ActionsUsedToday,
		MaxActionsPerDay: ev.MaxActionsPerDay,
	}
	decide := []task.Task[decision.Decision]{
		task.New(task.Descriptor[decision.Decision]{
			Name:     TaskDecision,
			Timeout:  p.timeouts.Decision,
			Fallback: decision.HoldFallback(),
		}, func(ctx context.Context) (decision.Decision, error) {
			return p.c.Decider.Decide(ctx, input)
		}),
	}

	decisionResults, err := task.ExecuteSequentialResults(ctx, p.orchestrator, decide)
	if err != nil {
		return out, err
	}
	out.decision, _ = decisionResults[TaskDecision].Value.(decision.Decision)
	out.results = append(out.results, decisionResults[TaskDecision])
	return out, nil
}

// execute gates the proposed action and places the order when it survives.
func (p *Pipeline) execute(ctx context.Context, ev *TradeEvaluation) executionOutput {
	symbol := ev.Symbol
	out := executionOutput{
		action:      ev.Decision,
		quantity:    ev.Quantity,
		reasoning:   ev.Reasoning,
		actionsUsed: ev.ActionsUsedToday,
		status:      StatusOK,
	}

	held := 0
	if ev.Decision == decision.Sell {
		qty, err := p.c.Holdings.HeldQuantity(ctx, symbol)
		if err != nil {
			p.log("[execute] %s: could not read position, assuming none: %v", symbol, err)
		} else {
			held = qty
		}
	}

	v := decision.Evaluate(ev.Decision, ev.Quantity, ev.ActionsUsedToday, ev.MaxActionsPerDay, held)
	if v.Floored {
		p.log("[execute] WARNING: %s %s proposed quantity %d, raised to 1", symbol, ev.Decision, ev.Quantity)
	}
	if v.Downgraded {
		p.log("[execute] %s: %s", symbol, v.Reason)
		out.action = decision.Hold
		out.quantity = 0
		out.reasoning = v.Reason
		out.downgraded = true
		out.reason = v.Reason
		out.status = StatusDegraded
		out.notes = v.Reason
		return out
	}
	if v.Action == decision.Hold {
		p.log("[execute] %s: HOLD, no order", symbol)
		out.quantity = 0
		out.notes = "hold"
		return out
	}

	out.action = v.Action
	out.quantity = v.Quantity
	order, err := p.c.Orders.PlaceOrder(ctx, broker.OrderRequest{Symbol: symbol, Side: v.Action, Qty: v.Quantity})
	if err != nil {
		p.log("[execute] %s: order failed: %v", symbol, err)
		out.orderResult = fmt.Sprintf("Order FAILED: %v", err)
		out.status = StatusFailed
		out.notes = err.Error()
		return out
	}

	out.executed = true
	out.orderID = order.ID
	out.orderResult = order.Summary()
	out.actionsUsed++
	out.notes = out.orderResult
	p.log("[execute] %s", out.orderResult)

	if p.c.Notifier != nil {
		event := notify.Event{
			Symbol:           symbol,
			Action:           out.action,
			Quantity:         out.quantity,
			Reasoning:        out.reasoning,
			OrderSummary:     out.orderResult,
			ActionsUsedToday: out.actionsUsed,
			MaxActionsPerDay: ev.MaxActionsPerDay,
		}
		if err := p.c.Notifier.Notify(ctx, event); err != nil {
			p.log("[execute] %s: notification failed: %v", symbol, err)
		}
	}
	return out
}

func (e *TradeEvaluation) applyNews(out contextOutput) {
	e.NewsContext = out.text
}

func (e *TradeEvaluation) applyChart(out contextOutput) {
	e.ChartContext = out.text
}

func (e *TradeEvaluation) applyPortfolio(out contextOutput) {
	e.PortfolioContext = out.text
}

func (e *TradeEvaluation) applyAnalysis(out analysisOutput) {
	e.NewsSummary = out.newsSummary
	e.ChartSummary = out.chartSummary
	e.Proposed = out.decision.Action
	e.Decision = out.decision.Action
	e.Quantity = out.decision.Quantity
	e.Reasoning = out.decision.Reasoning
	e.Confidence = out.decision.Confidence
}

func (e *TradeEvaluation) applyExecution(out executionOutput) {
	e.Decision = out.action
	e.Quantity = out.quantity
	e.Reasoning = out.reasoning
	e.Downgraded = out.downgraded
	e.DowngradeReason = out.reason
	e.Executed = out.executed
	e.OrderID = out.orderID
	e.OrderResult = out.orderResult
	e.ActionsUsedToday = out.actionsUsed
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func contextStatus(out contextOutput) (string, string) {
	if out.err != nil {
		return StatusDegraded, out.err.Error()
	}
	return StatusOK, ""
}

func analysisStatus(results []task.Result) (string, string) {
	var notes []string
	for _, r := range results {
		if r.UsedFallback() {
			notes = append(notes, fmt.Sprintf("%s: %s", r.Name, r.Kind))
		}
	}
	if len(notes) == 0 {
		return StatusOK, ""
	}
	return StatusDegraded, "fallback used for " + strings.Join(notes, ", ")
}
