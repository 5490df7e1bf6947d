package task

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Orchestrator coordinates batches of tasks and reports each outcome.
type Orchestrator struct {
	logger   func(format string, args ...any)
	observer func(Result)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger for observable output.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithObserver registers a hook called once per finished task.
func WithObserver(observer func(Result)) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: log.Printf,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var defaultOrchestrator = NewOrchestrator()

// ExecuteParallel starts every task at once and returns one value per task name.
// Failed optional tasks contribute their fallback. A failed required task
// aborts the call with a *RequiredTaskError and no map.
func ExecuteParallel[T any](ctx context.Context, o *Orchestrator, tasks []Task[T]) (map[string]T, error) {
	results, err := ExecuteParallelResults(ctx, o, tasks)
	if err != nil {
		return nil, err
	}
	return valuesOf[T](results), nil
}

// ExecuteSequential runs tasks one at a time in the given order.
func ExecuteSequential[T any](ctx context.Context, o *Orchestrator, tasks []Task[T]) (map[string]T, error) {
	results, err := ExecuteSequentialResults(ctx, o, tasks)
	if err != nil {
		return nil, err
	}
	return valuesOf[T](results), nil
}

// indexedOutcome tags an outcome with the task it belongs to.
type indexedOutcome[T any] struct {
	index   int
	outcome Outcome[T]
}

// ExecuteParallelResults is ExecuteParallel with per-task outcome detail.
func ExecuteParallelResults[T any](ctx context.Context, o *Orchestrator, tasks []Task[T]) (map[string]Result, error) {
	if o == nil {
		o = defaultOrchestrator
	}
	if err := validate(tasks); err != nil {
		return nil, err
	}

	// Cancelling the batch context abandons whatever is still in flight
	// once we return early on a required failure.
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan indexedOutcome[T], len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task[T]) {
			defer wg.Done()
			outcomes <- indexedOutcome[T]{index: i, outcome: runNamed(batchCtx, t.Name, t.Timeout, t.Run)}
		}(i, t)
	}

	// Close outcomes channel when all tasks complete
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make(map[string]Result, len(tasks))
	for out := range outcomes {
		t := tasks[out.index]
		res := record(o, t, out.outcome)
		if res.UsedFallback() && t.Required {
			return nil, &RequiredTaskError{Task: t.Name, Outcome: res.Kind, Err: res.Err}
		}
		results[t.Name] = res
	}
	return results, nil
}

// ExecuteSequentialResults is ExecuteSequential with per-task outcome detail.
func ExecuteSequentialResults[T any](ctx context.Context, o *Orchestrator, tasks []Task[T]) (map[string]Result, error) {
	if o == nil {
		o = defaultOrchestrator
	}
	if err := validate(tasks); err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(tasks))
	for _, t := range tasks {
		res := record(o, t, runNamed(ctx, t.Name, t.Timeout, t.Run))
		if res.UsedFallback() && t.Required {
			return nil, &RequiredTaskError{Task: t.Name, Outcome: res.Kind, Err: res.Err}
		}
		results[t.Name] = res
	}
	return results, nil
}

// record classifies an outcome, applies the fallback and notifies the observer.
func record[T any](o *Orchestrator, t Task[T], outcome Outcome[T]) Result {
	res := Result{
		Name:     t.Name,
		Kind:     outcome.Kind,
		Err:      outcome.Err,
		Elapsed:  outcome.Elapsed,
		Required: t.Required,
	}
	switch res.Kind {
	case OutcomeOK:
		res.Value = outcome.Value
		o.log("[orchestrator] %s: ok (%s)", t.Name, outcome.Elapsed.Round(time.Millisecond))
	case OutcomeTimedOut:
		res.Value = t.Fallback
		o.log("[orchestrator] %s: timeout after %s -> fallback", t.Name, t.Timeout)
	default:
		res.Value = t.Fallback
		o.log("[orchestrator] %s: error: %v -> fallback", t.Name, outcome.Err)
	}
	if o.observer != nil {
		o.observer(res)
	}
	return res
}

func (o *Orchestrator) log(format string, args ...any) {
	if o.logger != nil {
		o.logger(format, args...)
	}
}

func validate[T any](tasks []Task[T]) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if t.Name == "" {
			return fmt.Errorf("task %d has no name", i)
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.Timeout <= 0 {
			return fmt.Errorf("task %s: timeout must be positive, got %s", t.Name, t.Timeout)
		}
		if t.Run == nil {
			return fmt.Errorf("task %s: run function is nil", t.Name)
		}
	}
	return nil
}

func valuesOf[T any](results map[string]Result) map[string]T {
	values := make(map[string]T, len(results))
	for name, res := range results {
		v, _ := res.Value.(T)
		values[name] = v
	}
	return values
}
