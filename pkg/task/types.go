// Package task runs named units of work under independent deadlines.
// A batch of tasks is executed either in parallel or sequentially, and each
// failure is either absorbed by the task's fallback value or escalated when
// the task is marked required.
package task

import (
	"context"
	"fmt"
	"time"
)

// Func is the unit of work. Inputs are captured by the closure.
type Func[T any] func(ctx context.Context) (T, error)

// Descriptor describes how a task is bounded and how its failure is handled.
type Descriptor[T any] struct {
	Name     string        // Unique within one orchestration call
	Timeout  time.Duration // Must be positive
	Fallback T             // Substituted on timeout or error
	Required bool          // Failure aborts the whole batch
}

// Task pairs a descriptor with the work it bounds.
type Task[T any] struct {
	Descriptor[T]
	Run Func[T]
}

// New builds a task.
func New[T any](d Descriptor[T], run Func[T]) Task[T] {
	return Task[T]{Descriptor: d, Run: run}
}

// OutcomeKind classifies how a task finished.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeTimedOut
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTimedOut:
		return "timeout"
	case OutcomeFailed:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is what the executor reports for a single run.
type Outcome[T any] struct {
	Kind    OutcomeKind
	Value   T
	Err     error
	Elapsed time.Duration
}

// OK reports whether the task produced a value in time.
func (o Outcome[T]) OK() bool {
	return o.Kind == OutcomeOK
}

// Result is the recorded outcome of one task inside a batch.
// Value is the computed value on success and the fallback otherwise.
type Result struct {
	Name     string
	Kind     OutcomeKind
	Value    any
	Err      error
	Elapsed  time.Duration
	Required bool
}

// UsedFallback reports whether the fallback value was substituted.
func (r Result) UsedFallback() bool {
	return r.Kind != OutcomeOK
}
