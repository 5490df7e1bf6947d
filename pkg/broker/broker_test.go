package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

func TestFormatUSD(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"5.5":        "$5.50",
		"999.999":    "$1,000.00",
		"1234567.89": "$1,234,567.89",
		"-42.1":      "-$42.10",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatUSD(decimal.RequireFromString(in)), in)
	}
}

func TestTTLCache(t *testing.T) {
	now := time.Unix(0, 0)
	c := newTTLCache[int](time.Second, func() time.Time { return now })

	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.getOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, _ = c.getOrFetch("k", fetch)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	v, _ = c.getOrFetch("k", fetch)
	assert.Equal(t, 2, v)

	_, err = c.getOrFetch("bad", func() (int, error) { return 0, errors.New("down") })
	assert.Error(t, err)
	_, ok := c.get("bad")
	assert.False(t, ok)
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	l := newRateLimiter(2, func() time.Time { return now })

	assert.Zero(t, l.reserve())
	assert.Zero(t, l.reserve())
	assert.Equal(t, time.Minute, l.reserve())

	now = now.Add(30 * time.Second)
	assert.Equal(t, 30*time.Second, l.reserve())

	now = now.Add(31 * time.Second)
	assert.Zero(t, l.reserve())
}

func TestPaper_BuyAndSell(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	p := NewPaper(decimal.NewFromInt(1000), WithPaperClock(func() time.Time { return fixed }))
	p.SetPrice("AAPL", decimal.NewFromInt(100))
	ctx := context.Background()

	order, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: decision.Buy, Qty: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "filled", order.Status)
	assert.Equal(t, fixed, order.SubmittedAt)

	held, _ := p.HeldQuantity(ctx, "AAPL")
	assert.Equal(t, 3, held)

	p.SetPrice("AAPL", decimal.NewFromInt(110))
	pos, err := p.Position(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "30", pos.UnrealizedPL.String())
	assert.Equal(t, "$330.00", FormatUSD(pos.MarketValue))

	acct, _ := p.Account(ctx)
	assert.Equal(t, "$700.00", FormatUSD(acct.Cash))
	assert.Equal(t, "$1,030.00", FormatUSD(acct.Equity))

	_, err = p.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: decision.Sell, Qty: 3})
	require.NoError(t, err)
	pos, _ = p.Position(ctx, "AAPL")
	assert.Nil(t, pos)
	assert.Len(t, p.Orders(), 2)
}

func TestPaper_Rejections(t *testing.T) {
	p := NewPaper(decimal.NewFromInt(50))
	p.SetPrice("AAPL", decimal.NewFromInt(100))
	ctx := context.Background()

	cases := []OrderRequest{
		{Symbol: "AAPL", Side: decision.Buy, Qty: 1},
		{Symbol: "AAPL", Side: decision.Sell, Qty: 1},
		{Symbol: "MSFT", Side: decision.Buy, Qty: 1},
		{Symbol: "AAPL", Side: decision.Buy, Qty: 0},
	}
	for _, req := range cases {
		_, err := p.PlaceOrder(ctx, req)
		var orderErr *OrderError
		assert.True(t, errors.As(err, &orderErr), "%+v", req)
	}
	assert.Empty(t, p.Orders())

	_, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "MSFT", Side: decision.Buy, Qty: 1})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPaper_MarketData(t *testing.T) {
	md := NewPaper(decimal.Zero)
	md.SetPrice("TSLA", decimal.NewFromInt(200))

	p := NewPaper(decimal.NewFromInt(500), WithMarketData(md))
	price, err := p.LatestPrice(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "200", price.String())

	_, err = p.Bars(context.Background(), "TSLA", BarQuery{})
	assert.Error(t, err)
}
