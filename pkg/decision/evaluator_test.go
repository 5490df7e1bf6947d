package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name       string
		action     Action
		qty        int
		used       int
		max        int
		held       int
		want       Action
		wantQty    int
		downgraded bool
		reason     string
		floored    bool
	}{
		{name: "hold is a no-op", action: Hold, qty: 7, used: 5, max: 5, held: 3, want: Hold},
		{name: "sell capped to holdings", action: Sell, qty: 10, used: 0, max: 5, held: 3, want: Sell, wantQty: 3},
		{name: "sell without position", action: Sell, qty: 1, used: 0, max: 5, held: 0, want: Hold, downgraded: true, reason: "no position"},
		{name: "sell negative holdings", action: Sell, qty: 1, used: 0, max: 5, held: -2, want: Hold, downgraded: true, reason: "no position"},
		{name: "buy budget exhausted", action: Buy, qty: 2, used: 5, max: 5, held: 0, want: Hold, downgraded: true, reason: "budget exhausted"},
		{name: "sell budget exhausted", action: Sell, qty: 2, used: 6, max: 5, held: 10, want: Hold, downgraded: true, reason: "budget exhausted"},
		{name: "unlimited budget", action: Buy, qty: 2, used: 3, max: Unlimited, held: 0, want: Buy, wantQty: 2},
		{name: "unlimited budget large usage", action: Buy, qty: 1, used: 1000, max: Unlimited, want: Buy, wantQty: 1},
		{name: "buy passes through", action: Buy, qty: 5, used: 0, max: 5, want: Buy, wantQty: 5},
		{name: "buy zero floored", action: Buy, qty: 0, used: 0, max: 5, want: Buy, wantQty: 1, floored: true},
		{name: "sell zero floored", action: Sell, qty: 0, used: 0, max: 5, held: 4, want: Sell, wantQty: 1, floored: true},
		{name: "zero budget", action: Buy, qty: 1, used: 0, max: 0, want: Hold, downgraded: true, reason: "budget exhausted"},
		{name: "unknown action", action: Action("SHORT"), qty: 1, used: 0, max: 5, want: Hold, downgraded: true, reason: "unrecognized"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.action, tc.qty, tc.used, tc.max, tc.held)
			assert.Equal(t, tc.want, got.Action)
			assert.Equal(t, tc.wantQty, got.Quantity)
			assert.Equal(t, tc.downgraded, got.Downgraded)
			assert.Equal(t, tc.floored, got.Floored)
			if tc.reason == "" {
				assert.Empty(t, got.Reason)
			} else {
				assert.Contains(t, got.Reason, tc.reason)
			}
		})
	}
}

func TestEvaluate_HoldNeverProceeds(t *testing.T) {
	for _, max := range []int{Unlimited, 0, 1, 5} {
		for used := 0; used <= 6; used++ {
			v := Evaluate(Hold, used, used, max, used)
			assert.Equal(t, Verdict{Action: Hold}, v)
			assert.False(t, v.Proceed())
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	inputs := [][4]int{{10, 0, 5, 3}, {1, 0, 5, 0}, {2, 5, 5, 0}, {2, 3, -1, 0}}
	for _, in := range inputs {
		for _, a := range []Action{Buy, Sell, Hold} {
			first := Evaluate(a, in[0], in[1], in[2], in[3])
			second := Evaluate(a, in[0], in[1], in[2], in[3])
			assert.Equal(t, first, second)
		}
	}
}

func TestEvaluate_BudgetNeverExceeded(t *testing.T) {
	max := 3
	used := 0
	for i := 0; i < 10; i++ {
		v := Evaluate(Buy, 1, used, max, 0)
		if v.Proceed() {
			used++
		}
		assert.LessOrEqual(t, used, max)
	}
	assert.Equal(t, max, used)
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"buy":    Buy,
		" SELL ": Sell,
		"Hold":   Hold,
	}
	for in, want := range cases {
		got, ok := ParseAction(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseAction("short")
	assert.False(t, ok)
	assert.Equal(t, "buy", Buy.Lower())
	assert.True(t, Sell.Valid())
	assert.False(t, Action("").Valid())
}

func TestHoldFallback(t *testing.T) {
	fb := HoldFallback()
	assert.Equal(t, Hold, fb.Action)
	assert.Zero(t, fb.Quantity)
	assert.InDelta(t, 0.3, fb.Confidence, 1e-9)
	assert.Contains(t, fb.Reasoning, "Defaulting to HOLD")
}

func TestBudgetLabel(t *testing.T) {
	assert.Equal(t, "unlimited", BudgetLabel(Unlimited))
	assert.Equal(t, "5", BudgetLabel(5))
	assert.Equal(t, "0", BudgetLabel(0))
}
