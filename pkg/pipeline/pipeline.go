// Package pipeline evaluates one symbol through five fixed stages:
// retrieve news, retrieve chart, retrieve portfolio, analyze and execute.
//
// Retrieval failures degrade to placeholder text, LLM failures degrade to
// fallback values, and order failures are recorded on the evaluation. Only a
// required task failing inside analyze aborts a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/evidence"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

// Pipeline runs trade evaluations against a fixed set of collaborators.
type Pipeline struct {
	c            Collaborators
	orchestrator *task.Orchestrator
	timeouts     Timeouts
	evidenceDir  string
	now          func() time.Time
	newRunID     func() string

	// Observable logging
	logger func(format string, args ...any)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for observable output.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithOrchestrator sets the orchestrator used by the analyze stage.
func WithOrchestrator(o *task.Orchestrator) Option {
	return func(p *Pipeline) {
		p.orchestrator = o
	}
}

// WithTimeouts overrides the analyze stage timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(p *Pipeline) {
		p.timeouts = t
	}
}

// WithEvidence writes a bundle for every run under dir.
func WithEvidence(dir string) Option {
	return func(p *Pipeline) {
		p.evidenceDir = dir
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline. Every collaborator except Notifier is required.
func New(c Collaborators, opts ...Option) (*Pipeline, error) {
	var missing []string
	if c.News == nil {
		missing = append(missing, "news")
	}
	if c.Chart == nil {
		missing = append(missing, "chart")
	}
	if c.Portfolio == nil {
		missing = append(missing, "portfolio")
	}
	if c.Summarizer == nil {
		missing = append(missing, "summarizer")
	}
	if c.Decider == nil {
		missing = append(missing, "decider")
	}
	if c.Holdings == nil {
		missing = append(missing, "holdings")
	}
	if c.Orders == nil {
		missing = append(missing, "orders")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing collaborators: %s", strings.Join(missing, ", "))
	}

	p := &Pipeline{
		c:        c,
		timeouts: DefaultTimeouts(),
		now:      time.Now,
		newRunID: uuid.NewString,
		logger:   log.Printf,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.orchestrator == nil {
		p.orchestrator = task.NewOrchestrator(task.WithLogger(p.logger))
	}
	return p, nil
}

// Run evaluates one symbol. When a required task fails the partial
// evaluation is returned together with the error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*TradeEvaluation, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if req.MaxActionsPerDay < decision.Unlimited {
		return nil, fmt.Errorf("invalid max actions per day: %d", req.MaxActionsPerDay)
	}

	start := p.now()
	ev := &TradeEvaluation{
		RunID:            p.newRunID(),
		Symbol:           symbol,
		Decision:         decision.Hold,
		ActionsUsedToday: req.ActionsUsedToday,
		MaxActionsPerDay: req.MaxActionsPerDay,
		StartedAt:        start,
	}
	rec := p.recorder(ev.RunID)
	p.log("[pipeline] %s: run %s started", symbol, ev.RunID)

	// Stage 1: RetrieveNews
	stageStart := p.now()
	news := p.retrieveNews(ctx, symbol)
	ev.applyNews(news)
	status, notes := contextStatus(news)
	p.finishStage(ev, rec, StageRetrieveNews, stageStart, status, notes, ev.NewsContext, nil)

	// Stage 2: RetrieveChart
	stageStart = p.now()
	chart := p.retrieveChart(ctx, symbol)
	ev.applyChart(chart)
	status, notes = contextStatus(chart)
	p.finishStage(ev, rec, StageRetrieveChart, stageStart, status, notes, ev.ChartContext, nil)

	// Stage 3: RetrievePortfolio
	stageStart = p.now()
	portfolio := p.retrievePortfolio(ctx, symbol)
	ev.applyPortfolio(portfolio)
	status, notes = contextStatus(portfolio)
	p.finishStage(ev, rec, StageRetrievePortfolio, stageStart, status, notes, ev.PortfolioContext, nil)

	// Stage 4: Analyze
	stageStart = p.now()
	analysis, err := p.analyze(ctx, ev)
	if err != nil {
		p.log("[pipeline] %s: analyze aborted: %v", symbol, err)
		p.finishStage(ev, rec, StageAnalyze, stageStart, StatusFailed, err.Error(), "", analysis.results)
		p.finishRun(ev, rec, start, err)
		return ev, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	ev.applyAnalysis(analysis)
	status, notes = analysisStatus(analysis.results)
	p.log("[pipeline] %s: proposed %s %d (confidence %.2f)", symbol, ev.Decision, ev.Quantity, ev.Confidence)
	p.finishStage(ev, rec, StageAnalyze, stageStart, status, notes,
		fmt.Sprintf("%s %d: %s", ev.Decision, ev.Quantity, ev.Reasoning), analysis.results)

	// Stage 5: Execute
	stageStart = p.now()
	execution := p.execute(ctx, ev)
	ev.applyExecution(execution)
	p.finishStage(ev, rec, StageExecute, stageStart, execution.status, execution.notes, ev.OrderResult, nil)

	p.finishRun(ev, rec, start, nil)
	p.log("[pipeline] %s: finished in %s (decision=%s executed=%t)",
		symbol, ev.Duration.Round(time.Millisecond), ev.Decision, ev.Executed)
	return ev, nil
}

func (p *Pipeline) finishStage(ev *TradeEvaluation, rec *evidence.Writer, name string, start time.Time, status, notes, output string, results []task.Result) {
	stage := StageLog{
		Stage:     name,
		StartTime: start,
		Duration:  p.now().Sub(start),
		Status:    status,
		Notes:     notes,
		Tasks:     results,
	}
	ev.Stages = append(ev.Stages, stage)

	if rec == nil {
		return
	}
	record := evidence.StageRecord{
		Name:           name,
		Status:         status,
		Output:         output,
		DurationMillis: stage.Duration.Milliseconds(),
	}
	if status != StatusOK {
		record.Error = notes
	}
	for _, r := range results {
		tr := evidence.TaskRecord{
			Name:           r.Name,
			Outcome:        r.Kind.String(),
			UsedFallback:   r.UsedFallback(),
			DurationMillis: r.Elapsed.Milliseconds(),
		}
		if r.Err != nil {
			tr.Error = r.Err.Error()
		}
		record.Tasks = append(record.Tasks, tr)
	}
	if err := rec.WriteStage(record); err != nil {
		p.log("[pipeline] evidence: write stage %s: %v", name, err)
	}
}

func (p *Pipeline) finishRun(ev *TradeEvaluation, rec *evidence.Writer, start time.Time, runErr error) {
	ev.Duration = p.now().Sub(start)
	if rec == nil {
		return
	}
	record := evidence.RunRecord{
		ID:               ev.RunID,
		Symbol:           ev.Symbol,
		StartedAt:        ev.StartedAt,
		DurationMillis:   ev.Duration.Milliseconds(),
		Decision:         string(ev.Decision),
		Quantity:         ev.Quantity,
		Confidence:       ev.Confidence,
		Executed:         ev.Executed,
		OrderResult:      ev.OrderResult,
		Downgraded:       ev.Downgraded,
		DowngradeReason:  ev.DowngradeReason,
		ActionsUsedToday: ev.ActionsUsedToday,
		MaxActionsPerDay: ev.MaxActionsPerDay,
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	if err := rec.WriteRun(record); err != nil {
		p.log("[pipeline] evidence: write run: %v", err)
	}
}

func (p *Pipeline) recorder(runID string) *evidence.Writer {
	if p.evidenceDir == "" {
		return nil
	}
	w, err := evidence.NewWriter(p.evidenceDir, runID)
	if err != nil {
		p.log("[pipeline] evidence disabled for run %s: %v", runID, err)
		return nil
	}
	return w
}

func (p *Pipeline) log(format string, args ...any) {
	if p.logger != nil {
		p.logger(format, args...)
	}
}
