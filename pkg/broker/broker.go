// Package broker places orders and reads account, position and market data
// from Alpaca or from an in-memory paper account.
package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// Account is a brokerage account snapshot.
type Account struct {
	Equity      decimal.Decimal `json:"equity"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	Cash        decimal.Decimal `json:"cash"`
	Status      string          `json:"status"`
}

// Position is an open position in one symbol.
type Position struct {
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	UnrealizedPL   decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPC decimal.Decimal `json:"unrealized_plpc"`
}

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time       `json:"t"`
	Open   decimal.Decimal `json:"o"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Close  decimal.Decimal `json:"c"`
	Volume int64           `json:"v"`
}

// BarQuery selects a range of candles.
type BarQuery struct {
	Timeframe string
	Start     time.Time
	Limit     int
}

// DefaultBarQuery is five days of 5-minute candles.
func DefaultBarQuery(now time.Time) BarQuery {
	return BarQuery{
		Timeframe: "5Min",
		Start:     now.Add(-5 * 24 * time.Hour),
		Limit:     1000,
	}
}

// OrderRequest is a market order for whole shares.
type OrderRequest struct {
	Symbol string
	Side   decision.Action
	Qty    int
}

// Order is a submitted order. ReferencePrice is the last trade price seen
// just before submission and may be zero when no quote was available.
type Order struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Side           decision.Action `json:"side"`
	Qty            int             `json:"qty"`
	Status         string          `json:"status"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// Summary renders the order the way it is reported to the operator.
func (o *Order) Summary() string {
	return fmt.Sprintf("Order %s: %s %d share(s) of %s @ ~%s | Status: %s",
		o.ID, o.Side, o.Qty, o.Symbol, FormatUSD(o.ReferencePrice), o.Status)
}

// FormatUSD renders an amount as $1,234.56.
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// wholeShares truncates a possibly fractional quantity.
func wholeShares(qty decimal.Decimal) int {
	return int(qty.IntPart())
}
