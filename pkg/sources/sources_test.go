package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VAnkata19/TraderAI/pkg/broker"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

func TestTavilySource_Available(t *testing.T) {
	ts := NewTavilySource(WithTavilyAPIKey(""))
	if ts.Available() {
		t.Error("Available() should return false without API key")
	}

	ts = NewTavilySource(WithTavilyAPIKey("test-key"))
	if !ts.Available() {
		t.Error("Available() should return true with API key")
	}
	if ts.Name() != "tavily" {
		t.Errorf("Name() = %s, want 'tavily'", ts.Name())
	}
}

func TestTavilySource_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Expected bearer token")
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req["include_answer"] != false {
			t.Error("include_answer should be false")
		}
		if req["query"] != "NVDA stock news" {
			t.Errorf("query = %v", req["query"])
		}
		if req["max_results"] != float64(4) {
			t.Errorf("max_results = %v", req["max_results"])
		}

		resp := map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Earnings beat", "url": "https://example.com/a", "content": "NVDA beat estimates", "score": 0.9, "published_date": "Tue, 02 Jan 2024 15:04:05 GMT"},
				{"title": "Empty", "url": "https://example.com/b", "content": "  ", "score": 0.1},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ts := NewTavilySource(WithTavilyAPIKey("test-key"), WithTavilyEndpoint(server.URL))
	docs, err := ts.Search(context.Background(), "NVDA", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Published.IsZero() {
		t.Error("published date should be parsed")
	}

	_, err = NewTavilySource(WithTavilyAPIKey("")).Search(context.Background(), "NVDA", 4)
	if err == nil {
		t.Error("Search should fail without API key")
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Yahoo</title>
<item><title>Old news</title><link>https://example.com/old</link><description>old story</description><pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate></item>
<item><title>Fresh news</title><link>https://example.com/new</link><description>&lt;p&gt;Apple &amp;amp; partners&lt;/p&gt;</description><pubDate>Wed, 03 Jan 2024 10:00:00 +0000</pubDate></item>
<item><title>Middle news</title><link>https://example.com/mid</link><description>mid story</description><pubDate>Tue, 02 Jan 2024 10:00:00 +0000</pubDate></item>
</channel></rss>`

func TestRSSSource_Search(t *testing.T) {
	var gotSymbol string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("s")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	src := NewRSSSource(server.URL+"/rss?s={symbol}", server.Client())
	docs, err := src.Search(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotSymbol != "AAPL" {
		t.Errorf("symbol = %q", gotSymbol)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Title != "Fresh news" || docs[1].Title != "Middle news" {
		t.Errorf("unexpected order: %s, %s", docs[0].Title, docs[1].Title)
	}
	if docs[0].Content != "Apple & partners" {
		t.Errorf("content = %q", docs[0].Content)
	}
}

type stubSource struct {
	name      string
	available bool
	docs      []Document
	err       error
	calls     int
}

func (s *stubSource) Name() string    { return s.name }
func (s *stubSource) Available() bool { return s.available }

func (s *stubSource) Search(ctx context.Context, symbol string, limit int) ([]Document, error) {
	s.calls++
	return s.docs, s.err
}

func TestNewsFeed_FallsBackInOrder(t *testing.T) {
	primary := &stubSource{name: "tavily", available: true, err: errors.New("quota")}
	secondary := &stubSource{name: "rss", available: true, docs: []Document{
		{Title: "A", Content: "first"},
		{Title: "B", Content: "second"},
	}}
	feed := NewNewsFeed(5, primary, secondary)

	got, err := feed.NewsContext(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("NewsContext: %v", err)
	}
	if got != "A\nfirst\n\n---\n\nB\nsecond" {
		t.Errorf("unexpected context %q", got)
	}
}

func TestNewsFeed_SkipsUnavailable(t *testing.T) {
	off := &stubSource{name: "tavily"}
	on := &stubSource{name: "rss", available: true, docs: []Document{{Content: "x"}}}
	if _, err := NewNewsFeed(5, off, on).NewsContext(context.Background(), "AAPL"); err != nil {
		t.Fatalf("NewsContext: %v", err)
	}
	if off.calls != 0 {
		t.Error("unavailable source was queried")
	}
}

func TestNewsFeed_AllFail(t *testing.T) {
	feed := NewNewsFeed(5,
		&stubSource{name: "tavily", available: true, err: errors.New("quota")},
		&stubSource{name: "rss", available: true, err: errors.New("502")},
	)
	_, err := feed.NewsContext(context.Background(), "AAPL")
	if !errors.Is(err, task.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota") || !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry both causes: %v", err)
	}
}

func TestNewsFeed_NoNews(t *testing.T) {
	feed := NewNewsFeed(5, &stubSource{name: "rss", available: true})
	got, err := feed.NewsContext(context.Background(), "AAPL")
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
}

type stubBars struct {
	bars []broker.Bar
	err  error
}

func (s stubBars) Bars(ctx context.Context, symbol string, q broker.BarQuery) ([]broker.Bar, error) {
	return s.bars, s.err
}

func makeBars(n int) []broker.Bar {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	bars := make([]broker.Bar, n)
	for i := range bars {
		c := decimal.NewFromInt(int64(100 + i))
		bars[i] = broker.Bar{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c.Sub(decimal.NewFromInt(1)),
			High:   c.Add(decimal.NewFromInt(2)),
			Low:    c.Sub(decimal.NewFromInt(2)),
			Close:  c,
			Volume: int64(1000 + i),
		}
	}
	return bars
}

func TestChartFeed_Downsamples(t *testing.T) {
	feed := NewChartFeed(stubBars{bars: makeBars(120)})
	got, err := feed.ChartContext(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("ChartContext: %v", err)
	}

	blocks := strings.Split(got, documentSeparator)
	if len(blocks) != MaxCandles+1 {
		t.Fatalf("expected %d blocks, got %d", MaxCandles+1, len(blocks))
	}
	summary := blocks[len(blocks)-1]
	for _, want := range []string{"Last Close: 219.0000", "Period High: 221.0000", "Period Low: 98.0000", "Change: +0.46%"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if !strings.HasPrefix(blocks[0], "Ticker: AAPL\nTimestamp: ") {
		t.Errorf("unexpected candle block %q", blocks[0])
	}
}

func TestChartFeed_Errors(t *testing.T) {
	_, err := NewChartFeed(stubBars{err: errors.New("403")}).ChartContext(context.Background(), "AAPL")
	if !errors.Is(err, task.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	got, err := NewChartFeed(stubBars{}).ChartContext(context.Background(), "AAPL")
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestDownsample(t *testing.T) {
	for _, n := range []int{0, 10, 50, 51, 99, 100, 1000} {
		got := downsample(makeBars(n), MaxCandles)
		if len(got) > MaxCandles {
			t.Errorf("n=%d: %d candles", n, len(got))
		}
		if n <= MaxCandles && len(got) != n {
			t.Errorf("n=%d: short input should be untouched", n)
		}
	}
}

type flakyBroker struct {
	*broker.Paper
	accountErr error
	priceErr   error
}

func (f flakyBroker) Account(ctx context.Context) (*broker.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.Paper.Account(ctx)
}

func (f flakyBroker) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.Paper.LatestPrice(ctx, symbol)
}

func TestPortfolio(t *testing.T) {
	paper := broker.NewPaper(decimal.NewFromInt(5000))
	paper.SetPrice("AAPL", decimal.NewFromInt(110))
	paper.Seed("AAPL", 10, decimal.NewFromInt(100))

	got, err := NewPortfolio(paper).PortfolioContext(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("PortfolioContext: %v", err)
	}
	want := strings.Join([]string{
		"Account equity: $6,100.00  |  Buying power: $5,000.00  |  Cash: $5,000.00",
		"Current price of AAPL: $110.00",
		"Current position in AAPL: 10 shares @ avg $100.00  |  Market value: $1,100.00  |  Unrealised P/L: $100.00 (+10.00%)",
	}, "\n")
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPortfolio_DegradesPerLine(t *testing.T) {
	paper := broker.NewPaper(decimal.NewFromInt(5000))
	b := flakyBroker{Paper: paper, accountErr: errors.New("401"), priceErr: fmt.Errorf("no quote")}

	got, err := NewPortfolio(b).PortfolioContext(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("PortfolioContext: %v", err)
	}
	want := "Account info unavailable: 401\nCurrent price unavailable: no quote\nNo open position in MSFT."
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
