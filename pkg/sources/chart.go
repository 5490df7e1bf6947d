package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VAnkata19/TraderAI/pkg/broker"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

// MaxCandles caps the per-candle blocks in a chart context.
const MaxCandles = 50

// BarSource supplies OHLCV candles.
type BarSource interface {
	Bars(ctx context.Context, symbol string, q broker.BarQuery) ([]broker.Bar, error)
}

// ChartFeed renders recent candles as text for the chart summarizer.
type ChartFeed struct {
	bars BarSource
	now  func() time.Time
}

// NewChartFeed creates a chart feed.
func NewChartFeed(bars BarSource) *ChartFeed {
	return &ChartFeed{bars: bars, now: time.Now}
}

// ChartContext returns downsampled candle blocks followed by a snapshot
// summary. An empty string with a nil error means no candles were returned.
func (f *ChartFeed) ChartContext(ctx context.Context, symbol string) (string, error) {
	bars, err := f.bars.Bars(ctx, symbol, broker.DefaultBarQuery(f.now()))
	if err != nil {
		return "", &task.ProviderError{Provider: "chart", Op: "bars", Err: err}
	}
	if len(bars) == 0 {
		return "", nil
	}

	sampled := downsample(bars, MaxCandles)
	blocks := make([]string, 0, len(sampled)+1)
	for _, b := range sampled {
		blocks = append(blocks, formatCandle(symbol, b))
	}
	blocks = append(blocks, formatSnapshot(symbol, bars))
	return strings.Join(blocks, documentSeparator), nil
}

// downsample keeps every step-th candle and at most max of them, preferring
// the most recent.
func downsample(bars []broker.Bar, max int) []broker.Bar {
	if len(bars) <= max {
		return bars
	}
	step := len(bars) / max
	out := make([]broker.Bar, 0, len(bars)/step+1)
	for i := 0; i < len(bars); i += step {
		out = append(out, bars[i])
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func formatCandle(symbol string, b broker.Bar) string {
	return fmt.Sprintf("Ticker: %s\nTimestamp: %s\nOpen: %s\nHigh: %s\nLow: %s\nClose: %s\nVolume: %d",
		symbol,
		b.Time.UTC().Format(time.RFC3339),
		b.Open.StringFixed(4),
		b.High.StringFixed(4),
		b.Low.StringFixed(4),
		b.Close.StringFixed(4),
		b.Volume,
	)
}

func formatSnapshot(symbol string, bars []broker.Bar) string {
	first := bars[0]
	last := bars[len(bars)-1]
	prevClose := last.Close
	if len(bars) >= 2 {
		prevClose = bars[len(bars)-2].Close
	}

	change := decimal.Zero
	if !prevClose.IsZero() {
		change = last.Close.Sub(prevClose).Div(prevClose).Mul(decimal.NewFromInt(100))
	}

	high, low := first.High, first.Low
	var volume int64
	for _, b := range bars {
		if b.High.GreaterThan(high) {
			high = b.High
		}
		if b.Low.LessThan(low) {
			low = b.Low
		}
		volume += b.Volume
	}

	sign := ""
	if !change.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("Ticker: %s (latest snapshot)\nLast Close: %s\nChange: %s%s%%\nPeriod High: %s\nPeriod Low: %s\nAvg Volume: %d\nData range: %s to %s",
		symbol,
		last.Close.StringFixed(4),
		sign, change.StringFixed(2),
		high.StringFixed(4),
		low.StringFixed(4),
		volume/int64(len(bars)),
		first.Time.UTC().Format(time.RFC3339),
		last.Time.UTC().Format(time.RFC3339),
	)
}
