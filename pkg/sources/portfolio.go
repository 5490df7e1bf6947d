package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/VAnkata19/TraderAI/pkg/broker"
)

// PortfolioBroker is the read side of a broker.
type PortfolioBroker interface {
	Account(ctx context.Context) (*broker.Account, error)
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Position(ctx context.Context, symbol string) (*broker.Position, error)
}

// Portfolio builds the account, price and position report for a symbol.
// Each line degrades on its own to "<Kind> unavailable: <err>".
type Portfolio struct {
	broker PortfolioBroker
}

// NewPortfolio creates a portfolio context builder.
func NewPortfolio(b PortfolioBroker) *Portfolio {
	return &Portfolio{broker: b}
}

// PortfolioContext returns the report. It only fails when ctx has ended.
func (p *Portfolio) PortfolioContext(ctx context.Context, symbol string) (string, error) {
	lines := make([]string, 0, 3)

	if acct, err := p.broker.Account(ctx); err != nil {
		lines = append(lines, unavailable("Account info", err))
	} else {
		lines = append(lines, formatAccount(acct))
	}

	if price, err := p.broker.LatestPrice(ctx, symbol); err != nil {
		lines = append(lines, unavailable("Current price", err))
	} else {
		lines = append(lines, fmt.Sprintf("Current price of %s: %s", symbol, broker.FormatUSD(price)))
	}

	if pos, err := p.broker.Position(ctx, symbol); err != nil {
		lines = append(lines, unavailable("Position info", err))
	} else if pos == nil || !pos.Qty.IsPositive() {
		lines = append(lines, fmt.Sprintf("No open position in %s.", symbol))
	} else {
		lines = append(lines, formatPosition(symbol, pos))
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func formatAccount(a *broker.Account) string {
	return fmt.Sprintf("Account equity: %s  |  Buying power: %s  |  Cash: %s",
		broker.FormatUSD(a.Equity), broker.FormatUSD(a.BuyingPower), broker.FormatUSD(a.Cash))
}

func formatPosition(symbol string, p *broker.Position) string {
	pct := p.UnrealizedPLPC.Mul(decimal.NewFromInt(100))
	sign := ""
	if !pct.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("Current position in %s: %s shares @ avg %s  |  Market value: %s  |  Unrealised P/L: %s (%s%s%%)",
		symbol,
		p.Qty.StringFixed(0),
		broker.FormatUSD(p.AvgEntryPrice),
		broker.FormatUSD(p.MarketValue),
		broker.FormatUSD(p.UnrealizedPL),
		sign, pct.StringFixed(2),
	)
}

func unavailable(kind string, err error) string {
	return fmt.Sprintf("%s unavailable: %v", kind, err)
}
