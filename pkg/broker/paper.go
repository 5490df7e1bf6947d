package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// MarketData supplies prices and candles to the paper broker.
type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Bars(ctx context.Context, symbol string, q BarQuery) ([]Bar, error)
}

// Paper is an in-memory broker that fills market orders immediately at the
// latest known price.
type Paper struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]*paperPosition
	orders    []Order
	market    MarketData
	now       func() time.Time
}

type paperPosition struct {
	qty      int
	avgEntry decimal.Decimal
}

// PaperOption configures a Paper broker.
type PaperOption func(*Paper)

// WithMarketData prices orders from live market data.
func WithMarketData(md MarketData) PaperOption {
	return func(p *Paper) {
		p.market = md
	}
}

// WithPaperClock overrides time.Now for order timestamps.
func WithPaperClock(now func() time.Time) PaperOption {
	return func(p *Paper) {
		p.now = now
	}
}

// NewPaper creates a paper account holding cash.
func NewPaper(cash decimal.Decimal, opts ...PaperOption) *Paper {
	p := &Paper{
		cash:      cash,
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[string]*paperPosition),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the broker identifier.
func (p *Paper) Name() string {
	return "paper"
}

// SetPrice fixes the price of symbol. It takes precedence over market data.
func (p *Paper) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// Seed opens a position without spending cash.
func (p *Paper) Seed(symbol string, qty int, avgEntry decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[symbol] = &paperPosition{qty: qty, avgEntry: avgEntry}
}

// LatestPrice returns the fixed price or the market data price.
func (p *Paper) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	price, ok := p.prices[symbol]
	p.mu.Unlock()
	if ok {
		return price, nil
	}
	if p.market == nil {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return p.market.LatestPrice(ctx, symbol)
}

// Bars delegates to market data.
func (p *Paper) Bars(ctx context.Context, symbol string, q BarQuery) ([]Bar, error) {
	if p.market == nil {
		return nil, fmt.Errorf("paper broker has no market data for %s", symbol)
	}
	return p.market.Bars(ctx, symbol, q)
}

// Account values open positions at the latest price, or at entry when no
// price is known.
func (p *Paper) Account(ctx context.Context) (*Account, error) {
	p.mu.Lock()
	cash := p.cash
	held := make(map[string]paperPosition, len(p.positions))
	for sym, pos := range p.positions {
		held[sym] = *pos
	}
	p.mu.Unlock()

	equity := cash
	for sym, pos := range held {
		price, err := p.LatestPrice(ctx, sym)
		if err != nil {
			price = pos.avgEntry
		}
		equity = equity.Add(price.Mul(decimal.NewFromInt(int64(pos.qty))))
	}
	return &Account{Equity: equity, BuyingPower: cash, Cash: cash, Status: "ACTIVE"}, nil
}

// Position returns the open position in symbol, or nil if there is none.
func (p *Paper) Position(ctx context.Context, symbol string) (*Position, error) {
	p.mu.Lock()
	pos, ok := p.positions[symbol]
	var snapshot paperPosition
	if ok {
		snapshot = *pos
	}
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}

	qty := decimal.NewFromInt(int64(snapshot.qty))
	price, err := p.LatestPrice(ctx, symbol)
	if err != nil {
		price = snapshot.avgEntry
	}
	cost := snapshot.avgEntry.Mul(qty)
	value := price.Mul(qty)
	pl := value.Sub(cost)
	plpc := decimal.Zero
	if cost.IsPositive() {
		plpc = pl.Div(cost)
	}
	return &Position{
		Symbol:         symbol,
		Qty:            qty,
		AvgEntryPrice:  snapshot.avgEntry,
		MarketValue:    value,
		CurrentPrice:   price,
		UnrealizedPL:   pl,
		UnrealizedPLPC: plpc,
	}, nil
}

// HeldQuantity returns the shares held in symbol.
func (p *Paper) HeldQuantity(ctx context.Context, symbol string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[symbol]; ok {
		return pos.qty, nil
	}
	return 0, nil
}

// PlaceOrder fills a market order at the latest price.
func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	fail := func(err error) (*Order, error) {
		return nil, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	if req.Qty < 1 {
		return fail(fmt.Errorf("quantity must be at least 1"))
	}

	price, err := p.LatestPrice(ctx, req.Symbol)
	if err != nil {
		return fail(err)
	}
	qty := decimal.NewFromInt(int64(req.Qty))
	cost := price.Mul(qty)

	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positions[req.Symbol]
	switch req.Side {
	case decision.Buy:
		if cost.GreaterThan(p.cash) {
			return fail(fmt.Errorf("insufficient buying power: need %s, have %s", FormatUSD(cost), FormatUSD(p.cash)))
		}
		p.cash = p.cash.Sub(cost)
		if pos == nil {
			pos = &paperPosition{}
			p.positions[req.Symbol] = pos
		}
		total := pos.avgEntry.Mul(decimal.NewFromInt(int64(pos.qty))).Add(cost)
		pos.qty += req.Qty
		pos.avgEntry = total.Div(decimal.NewFromInt(int64(pos.qty)))
	case decision.Sell:
		if pos == nil || pos.qty < req.Qty {
			return fail(fmt.Errorf("insufficient position"))
		}
		p.cash = p.cash.Add(cost)
		pos.qty -= req.Qty
		if pos.qty == 0 {
			delete(p.positions, req.Symbol)
		}
	default:
		return fail(fmt.Errorf("unsupported side %q", req.Side))
	}

	order := Order{
		ID:             uuid.NewString(),
		Symbol:         req.Symbol,
		Side:           req.Side,
		Qty:            req.Qty,
		Status:         "filled",
		ReferencePrice: price,
		SubmittedAt:    p.now().UTC(),
	}
	p.orders = append(p.orders, order)
	return &order, nil
}

// Orders returns the filled orders, oldest first.
func (p *Paper) Orders() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, len(p.orders))
	copy(out, p.orders)
	return out
}
