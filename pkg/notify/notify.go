// Package notify delivers executed-order alerts.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// Event is an executed trade.
type Event struct {
	Symbol           string          `json:"symbol"`
	Action           decision.Action `json:"action"`
	Quantity         int             `json:"quantity"`
	Reasoning        string          `json:"reasoning"`
	OrderSummary     string          `json:"order_summary"`
	ActionsUsedToday int             `json:"actions_used_today"`
	MaxActionsPerDay int             `json:"max_actions_per_day"`
}

// BudgetLine renders the action budget as "n / max" or "n / ∞".
func (e Event) BudgetLine() string {
	if e.MaxActionsPerDay == decision.Unlimited {
		return fmt.Sprintf("%d / ∞", e.ActionsUsedToday)
	}
	return fmt.Sprintf("%d / %d", e.ActionsUsedToday, e.MaxActionsPerDay)
}

// Notifier delivers an event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to several notifiers. Every notifier is tried.
type Multi []Notifier

// Notify delivers e to every notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
