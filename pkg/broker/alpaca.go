package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Alpaca is a client for the Alpaca trading and market data REST APIs.
type Alpaca struct {
	baseURL    string
	dataURL    string
	keyID      string
	secretKey  string
	httpClient *http.Client
	limiter    *rateLimiter
	prices     *ttlCache[decimal.Decimal]
	bars       *ttlCache[[]Bar]
	now        func() time.Time
}

// AlpacaOption configures an Alpaca client.
type AlpacaOption func(*alpacaSettings)

type alpacaSettings struct {
	baseURL    string
	dataURL    string
	httpClient *http.Client
	perMinute  int
	priceTTL   time.Duration
	barsTTL    time.Duration
	now        func() time.Time
}

// WithBaseURL sets the trading API endpoint.
func WithBaseURL(u string) AlpacaOption {
	return func(s *alpacaSettings) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDataURL sets the market data API endpoint.
func WithDataURL(u string) AlpacaOption {
	return func(s *alpacaSettings) {
		s.dataURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) AlpacaOption {
	return func(s *alpacaSettings) {
		s.httpClient = client
	}
}

// WithRateLimit caps requests per minute. Zero disables limiting.
func WithRateLimit(perMinute int) AlpacaOption {
	return func(s *alpacaSettings) {
		s.perMinute = perMinute
	}
}

// WithCacheTTL sets how long prices and bars are reused.
func WithCacheTTL(price, bars time.Duration) AlpacaOption {
	return func(s *alpacaSettings) {
		s.priceTTL = price
		s.barsTTL = bars
	}
}

// WithClock overrides time.Now for caching and rate limiting.
func WithClock(now func() time.Time) AlpacaOption {
	return func(s *alpacaSettings) {
		s.now = now
	}
}

// NewAlpaca creates a client. Paper trading is the default endpoint.
func NewAlpaca(keyID, secretKey string, opts ...AlpacaOption) (*Alpaca, error) {
	if keyID == "" || secretKey == "" {
		return nil, fmt.Errorf("alpaca API key and secret are required")
	}

	s := alpacaSettings{
		baseURL:    "https://paper-api.alpaca.markets",
		dataURL:    "https://data.alpaca.markets",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		perMinute:  180,
		priceTTL:   30 * time.Second,
		barsTTL:    5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Alpaca{
		baseURL:    s.baseURL,
		dataURL:    s.dataURL,
		keyID:      keyID,
		secretKey:  secretKey,
		httpClient: s.httpClient,
		limiter:    newRateLimiter(s.perMinute, s.now),
		prices:     newTTLCache[decimal.Decimal](s.priceTTL, s.now),
		bars:       newTTLCache[[]Bar](s.barsTTL, s.now),
		now:        s.now,
	}, nil
}

// Name returns the broker identifier.
func (a *Alpaca) Name() string {
	return "alpaca"
}

// Account returns the account snapshot.
func (a *Alpaca) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := a.do(ctx, http.MethodGet, a.baseURL+"/v2/account", nil, &acct); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acct, nil
}

// Positions returns every open position.
func (a *Alpaca) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := a.do(ctx, http.MethodGet, a.baseURL+"/v2/positions", nil, &positions); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}

// Position returns the open position in symbol, or nil if there is none.
func (a *Alpaca) Position(ctx context.Context, symbol string) (*Position, error) {
	var pos Position
	err := a.do(ctx, http.MethodGet, a.baseURL+"/v2/positions/"+url.PathEscape(symbol), nil, &pos)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", symbol, err)
	}
	return &pos, nil
}

// HeldQuantity returns the whole shares held in symbol.
func (a *Alpaca) HeldQuantity(ctx context.Context, symbol string) (int, error) {
	pos, err := a.Position(ctx, symbol)
	if err != nil || pos == nil {
		return 0, err
	}
	return wholeShares(pos.Qty), nil
}

// LatestPrice returns the last trade price, falling back to the quote
// midpoint when no trade is available.
func (a *Alpaca) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return a.prices.getOrFetch("price:"+symbol, func() (decimal.Decimal, error) {
		var trade struct {
			Trade struct {
				Price decimal.Decimal `json:"p"`
			} `json:"trade"`
		}
		err := a.do(ctx, http.MethodGet, a.dataURL+"/v2/stocks/"+url.PathEscape(symbol)+"/trades/latest", nil, &trade)
		if err == nil && trade.Trade.Price.IsPositive() {
			return trade.Trade.Price, nil
		}

		var quote struct {
			Quote struct {
				Ask decimal.Decimal `json:"ap"`
				Bid decimal.Decimal `json:"bp"`
			} `json:"quote"`
		}
		if qerr := a.do(ctx, http.MethodGet, a.dataURL+"/v2/stocks/"+url.PathEscape(symbol)+"/quotes/latest", nil, &quote); qerr != nil {
			if err == nil {
				err = qerr
			}
			return decimal.Zero, fmt.Errorf("latest price %s: %w", symbol, err)
		}
		if !quote.Quote.Ask.IsPositive() || !quote.Quote.Bid.IsPositive() {
			return decimal.Zero, fmt.Errorf("latest price %s: %w", symbol, ErrNoPrice)
		}
		return quote.Quote.Ask.Add(quote.Quote.Bid).Div(decimal.NewFromInt(2)), nil
	})
}

// Bars returns candles for symbol, oldest first.
func (a *Alpaca) Bars(ctx context.Context, symbol string, q BarQuery) ([]Bar, error) {
	if q.Timeframe == "" {
		q = DefaultBarQuery(a.now())
	}
	key := fmt.Sprintf("bars:%s:%s:%d", symbol, q.Timeframe, q.Limit)

	return a.bars.getOrFetch(key, func() ([]Bar, error) {
		params := url.Values{}
		params.Set("timeframe", q.Timeframe)
		params.Set("adjustment", "raw")
		if !q.Start.IsZero() {
			params.Set("start", q.Start.UTC().Format(time.RFC3339))
		}
		if q.Limit > 0 {
			params.Set("limit", strconv.Itoa(q.Limit))
		}

		var resp struct {
			Bars []Bar `json:"bars"`
		}
		endpoint := a.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/bars?" + params.Encode()
		if err := a.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("get bars %s: %w", symbol, err)
		}
		return resp.Bars, nil
	})
}

type alpacaOrderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type alpacaOrder struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// PlaceOrder submits a day market order.
func (a *Alpaca) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	fail := func(err error) (*Order, error) {
		return nil, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	if req.Qty < 1 {
		return fail(fmt.Errorf("quantity must be at least 1"))
	}

	price, err := a.LatestPrice(ctx, req.Symbol)
	if err != nil {
		price = decimal.Zero
	}

	payload := alpacaOrderRequest{
		Symbol:      req.Symbol,
		Qty:         strconv.Itoa(req.Qty),
		Side:        req.Side.Lower(),
		Type:        "market",
		TimeInForce: "day",
	}
	var placed alpacaOrder
	if err := a.do(ctx, http.MethodPost, a.baseURL+"/v2/orders", payload, &placed); err != nil {
		return fail(err)
	}

	if placed.ID == "" {
		placed.ID = "unknown"
	}
	if placed.Status == "" {
		placed.Status = "unknown"
	}
	if placed.SubmittedAt.IsZero() {
		placed.SubmittedAt = a.now().UTC()
	}
	return &Order{
		ID:             placed.ID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Qty:            req.Qty,
		Status:         placed.Status,
		ReferencePrice: price,
		SubmittedAt:    placed.SubmittedAt,
	}, nil
}

func (a *Alpaca) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := a.limiter.wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
