package decision

import "fmt"

// Verdict is the gated outcome of a proposed action.
type Verdict struct {
	Action     Action
	Quantity   int
	Downgraded bool
	Reason     string

	// Floored is set when a BUY or SELL arrived with a quantity below one
	// and was raised to one. Callers should surface it; it usually means
	// the upstream decision is malformed.
	Floored bool
}

// Proceed reports whether an order should be placed.
func (v Verdict) Proceed() bool {
	return v.Action != Hold && !v.Downgraded
}

// Evaluate gates a proposed action against the daily budget and holdings.
// It has no side effects. Budget is never consumed here: the caller adds
// exactly one action after the order is placed successfully.
func Evaluate(action Action, quantity, actionsUsedToday, maxActionsPerDay, heldQty int) Verdict {
	switch action {
	case Hold:
		return Verdict{Action: Hold}
	case Buy, Sell:
	default:
		return downgrade(fmt.Sprintf("unrecognized decision %q, converting to HOLD", string(action)))
	}

	if maxActionsPerDay != Unlimited && actionsUsedToday >= maxActionsPerDay {
		return downgrade(fmt.Sprintf("action budget exhausted (%d/%d): wanted to %s, converting to HOLD",
			actionsUsedToday, maxActionsPerDay, action))
	}

	v := Verdict{Action: action, Quantity: quantity}
	if v.Quantity < 1 {
		v.Quantity = 1
		v.Floored = true
	}

	if action == Sell {
		if heldQty <= 0 {
			return downgrade("no position: cannot SELL without an open position, converting to HOLD")
		}
		if v.Quantity > heldQty {
			v.Quantity = heldQty
		}
	}
	return v
}

func downgrade(reason string) Verdict {
	return Verdict{Action: Hold, Quantity: 0, Downgraded: true, Reason: reason}
}
