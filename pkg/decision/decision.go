// Package decision holds the trading actions and the rules that gate them
// against the daily action budget and current holdings.
package decision

import (
	"strconv"
	"strings"
)

// Action is a trading action proposed by the decision step.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Unlimited disables the daily action budget.
const Unlimited = -1

// ParseAction normalizes free-form text such as " buy" into an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	case Hold:
		return Hold, true
	}
	return "", false
}

// Valid reports whether a is one of BUY, SELL or HOLD.
func (a Action) Valid() bool {
	return a == Buy || a == Sell || a == Hold
}

// Lower returns the lowercase form used in prompts and notifications.
func (a Action) Lower() string {
	return strings.ToLower(string(a))
}

// Decision is the structured output of the decide call.
type Decision struct {
	Action     Action  `json:"decision"`
	Quantity   int     `json:"quantity"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// HoldFallback is the decision used when the decide call times out or fails.
func HoldFallback() Decision {
	return Decision{
		Action:     Hold,
		Quantity:   0,
		Reasoning:  "Unable to reach decision due to timeout or error. Defaulting to HOLD.",
		Confidence: 0.3,
	}
}

// Input is everything the decide call sees for one symbol.
type Input struct {
	Symbol           string
	NewsSummary      string
	ChartSummary     string
	PortfolioContext string
	ActionsUsedToday int
	MaxActionsPerDay int
}

// BudgetLabel renders a budget limit, using "unlimited" for Unlimited.
func BudgetLabel(max int) string {
	if max == Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(max)
}
