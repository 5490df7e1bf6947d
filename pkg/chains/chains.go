// Package chains holds the three LLM calls of a trading evaluation: the news
// summary, the chart summary and the trading decision.
package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/VAnkata19/TraderAI/pkg/config"
	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// Summarizer turns raw news and chart context into short analyst reports.
type Summarizer struct {
	caller *Caller
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(c *Caller) *Summarizer {
	return &Summarizer{caller: c}
}

// SummarizeNews produces the news sentiment report for a symbol.
func (s *Summarizer) SummarizeNews(ctx context.Context, symbol, newsContext string) (string, error) {
	prompt := fmt.Sprintf(newsPromptTemplate, symbol, newsContext)
	return s.summarize(ctx, config.ChainNewsSummary, newsSystemPrompt, prompt)
}

// SummarizeChart produces the technical chart report for a symbol.
func (s *Summarizer) SummarizeChart(ctx context.Context, symbol, chartContext string) (string, error) {
	prompt := fmt.Sprintf(chartPromptTemplate, symbol, chartContext)
	return s.summarize(ctx, config.ChainChartSummary, chartSystemPrompt, prompt)
}

func (s *Summarizer) summarize(ctx context.Context, chain, system, prompt string) (string, error) {
	completion, err := s.caller.Call(ctx, chain, system, prompt)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(completion.Content)
	if content == "" {
		return "", fmt.Errorf("%s: empty completion", chain)
	}
	return content, nil
}

// Decider asks the model for a structured trading decision.
type Decider struct {
	caller *Caller
}

// NewDecider creates a Decider.
func NewDecider(c *Caller) *Decider {
	return &Decider{caller: c}
}

// Decide returns the model's decision for the given input. Unrecognized
// actions are passed through for the evaluator to downgrade.
func (d *Decider) Decide(ctx context.Context, in decision.Input) (decision.Decision, error) {
	used := fmt.Sprintf("%d", in.ActionsUsedToday)
	max := decision.BudgetLabel(in.MaxActionsPerDay)

	system := fmt.Sprintf(decisionSystemPrompt, used, max)
	prompt := fmt.Sprintf(decisionPromptTemplate, in.Symbol, in.NewsSummary, in.ChartSummary, in.PortfolioContext, used, max)

	completion, err := d.caller.Call(ctx, config.ChainDecision, system, prompt)
	if err != nil {
		return decision.Decision{}, err
	}
	return parseDecision(completion.Content)
}

// parseDecision extracts a Decision from a model response.
func parseDecision(content string) (decision.Decision, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw struct {
		Decision   string  `json:"decision"`
		Quantity   float64 `json:"quantity"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return decision.Decision{}, fmt.Errorf("failed to parse decision JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
			return decision.Decision{}, fmt.Errorf("failed to parse decision JSON: %w", err)
		}
	}

	if strings.TrimSpace(raw.Decision) == "" {
		return decision.Decision{}, fmt.Errorf("decision JSON has no decision field")
	}

	action, ok := decision.ParseAction(raw.Decision)
	if !ok {
		action = decision.Action(strings.ToUpper(strings.TrimSpace(raw.Decision)))
	}

	qty := int(math.Floor(raw.Quantity))
	if qty < 0 {
		qty = 0
	}

	return decision.Decision{
		Action:     action,
		Quantity:   qty,
		Reasoning:  strings.TrimSpace(raw.Reasoning),
		Confidence: math.Min(math.Max(raw.Confidence, 0), 1),
	}, nil
}
