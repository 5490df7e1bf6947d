// Package scheduler drives pipeline runs over the configured tickers on a
// fixed interval. It owns the daily action counters: they are loaded before
// each cycle and saved after it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/pipeline"
	"github.com/VAnkata19/TraderAI/pkg/store"
)

// Runner evaluates one symbol.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.TradeEvaluation, error)
}

// CounterStore persists per-symbol action counts for the current day.
type CounterStore interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, counts map[string]int) error
}

// Publisher pushes finished evaluations to live listeners.
type Publisher interface {
	Publish(kind string, v any) error
}

// SymbolResult is the outcome of one symbol within a cycle.
type SymbolResult struct {
	Symbol     string
	Evaluation *pipeline.TradeEvaluation
	Err        error
}

// Scheduler runs evaluation cycles.
type Scheduler struct {
	runner           Runner
	counters         CounterStore
	tickers          []string
	maxActionsPerDay int
	interval         time.Duration
	concurrency      int
	journal          store.Journal
	publisher        Publisher
	observer         func(*pipeline.TradeEvaluation)
	cycleObserver    func(time.Duration)
	now              func() time.Time

	// Observable logging
	logger func(format string, args ...any)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger for observable output.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithInterval sets the pause between cycles.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithConcurrency bounds how many symbols are evaluated at once.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// WithJournal records every finished evaluation.
func WithJournal(j store.Journal) Option {
	return func(s *Scheduler) {
		s.journal = j
	}
}

// WithPublisher publishes every finished evaluation as "evaluation".
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

// WithObserver registers a hook called once per finished evaluation.
func WithObserver(fn func(*pipeline.TradeEvaluation)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// WithCycleObserver registers a hook called with each cycle's duration.
func WithCycleObserver(fn func(time.Duration)) Option {
	return func(s *Scheduler) {
		s.cycleObserver = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler. Tickers are upper-cased and de-duplicated.
func New(runner Runner, counters CounterStore, tickers []string, maxActionsPerDay int, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	if maxActionsPerDay < decision.Unlimited {
		return nil, fmt.Errorf("invalid max actions per day: %d", maxActionsPerDay)
	}

	seen := make(map[string]bool, len(tickers))
	var symbols []string
	for _, t := range tickers {
		sym := strings.ToUpper(strings.TrimSpace(t))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, errors.New("at least one ticker is required")
	}

	s := &Scheduler{
		runner:           runner,
		counters:         counters,
		tickers:          symbols,
		maxActionsPerDay: maxActionsPerDay,
		interval:         5 * time.Minute,
		concurrency:      1,
		now:              time.Now,
		logger:           log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s, nil
}

// Tickers returns the normalized symbols.
func (s *Scheduler) Tickers() []string {
	out := make([]string, len(s.tickers))
	copy(out, s.tickers)
	return out
}

// Run executes cycles until ctx is cancelled. A failed cycle is logged and
// the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log("[scheduler] starting: tickers=%s interval=%s max_actions=%s",
		strings.Join(s.tickers, ","), s.interval, decision.BudgetLabel(s.maxActionsPerDay))
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log("[scheduler] cycle failed: %v", err)
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log("[scheduler] stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle evaluates every ticker once. Per-symbol failures, including
// panics, are reported in the results and never abort the cycle. The
// returned error covers only counter load and save failures.
func (s *Scheduler) RunCycle(ctx context.Context) ([]SymbolResult, error) {
	start := s.now()
	counts, err := s.counters.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load action counters: %w", err)
	}
	if counts == nil {
		counts = make(map[string]int)
	}

	results := make([]SymbolResult, len(s.tickers))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, symbol := range s.tickers {
		used := counts[symbol]
		g.Go(func() error {
			results[i] = s.runSymbol(ctx, symbol, used)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Evaluation != nil {
			counts[r.Symbol] = r.Evaluation.ActionsUsedToday
		}
	}
	saveErr := s.counters.Save(ctx, counts)

	for _, r := range results {
		if r.Err != nil {
			s.log("[scheduler] %s: %v", r.Symbol, r.Err)
		}
		if r.Evaluation != nil {
			s.publish(ctx, r.Evaluation)
		}
	}

	elapsed := s.now().Sub(start)
	if s.cycleObserver != nil {
		s.cycleObserver(elapsed)
	}
	s.log("[scheduler] cycle complete: %d ticker(s) in %s", len(s.tickers), elapsed.Round(time.Millisecond))

	if saveErr != nil {
		return results, fmt.Errorf("save action counters: %w", saveErr)
	}
	return results, nil
}

func (s *Scheduler) runSymbol(ctx context.Context, symbol string, used int) (res SymbolResult) {
	res.Symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			s.log("[scheduler] %s: panic: %v\n%s", symbol, r, debug.Stack())
			res.Err = fmt.Errorf("panic evaluating %s: %v", symbol, r)
		}
	}()

	s.log("[scheduler] %s: evaluating (actions today %d/%s)", symbol, used, decision.BudgetLabel(s.maxActionsPerDay))
	ev, err := s.runner.Run(ctx, pipeline.Request{
		Symbol:           symbol,
		ActionsUsedToday: used,
		MaxActionsPerDay: s.maxActionsPerDay,
	})
	res.Evaluation = ev
	res.Err = err
	return res
}

func (s *Scheduler) publish(ctx context.Context, ev *pipeline.TradeEvaluation) {
	if s.observer != nil {
		s.observer(ev)
	}
	if s.journal != nil {
		if err := s.journal.Record(ctx, DecisionRecord(ev)); err != nil {
			s.log("[scheduler] %s: journal: %v", ev.Symbol, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish("evaluation", ev); err != nil {
			s.log("[scheduler] %s: publish: %v", ev.Symbol, err)
		}
	}
}

// DecisionRecord converts an evaluation into a journal record.
func DecisionRecord(ev *pipeline.TradeEvaluation) store.DecisionRecord {
	return store.DecisionRecord{
		ID:               ev.RunID,
		Symbol:           ev.Symbol,
		Decision:         ev.Decision,
		Quantity:         ev.Quantity,
		Confidence:       ev.Confidence,
		Reasoning:        ev.Reasoning,
		NewsSummary:      ev.NewsSummary,
		ChartSummary:     ev.ChartSummary,
		Executed:         ev.Executed,
		OrderResult:      ev.OrderResult,
		Downgraded:       ev.Downgraded,
		ActionsUsedToday: ev.ActionsUsedToday,
		Timestamp:        ev.StartedAt.UTC(),
	}
}

func (s *Scheduler) log(format string, args ...any) {
	if s.logger != nil {
		s.logger(format, args...)
	}
}
