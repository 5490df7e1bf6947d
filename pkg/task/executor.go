package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runResult carries the task's return values back from its goroutine.
type runResult[T any] struct {
	value T
	err   error
}

// RunWithDeadline runs fn on its own goroutine and waits at most timeout for it.
//
// When the deadline passes first the task's context is cancelled and the call
// returns OutcomeTimedOut. Work that ignores its context keeps running in the
// background until it returns; its result is dropped into a buffered channel
// and discarded, so the goroutine does not leak.
func RunWithDeadline[T any](ctx context.Context, timeout time.Duration, fn Func[T]) Outcome[T] {
	return runNamed(ctx, "", timeout, fn)
}

func runNamed[T any](ctx context.Context, name string, timeout time.Duration, fn Func[T]) Outcome[T] {
	if timeout <= 0 {
		return Outcome[T]{Kind: OutcomeFailed, Err: fmt.Errorf("invalid timeout %s", timeout)}
	}
	if fn == nil {
		return Outcome[T]{Kind: OutcomeFailed, Err: fmt.Errorf("task function is nil")}
	}

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan runResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult[T]{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		v, err := fn(taskCtx)
		done <- runResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		elapsed := time.Since(start)
		if r.err == nil {
			return Outcome[T]{Kind: OutcomeOK, Value: r.value, Elapsed: elapsed}
		}
		// The task noticed its own deadline and gave up before we did.
		if ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return Outcome[T]{Kind: OutcomeTimedOut, Err: &TimeoutError{Task: name, Timeout: timeout}, Elapsed: elapsed}
		}
		return Outcome[T]{Kind: OutcomeFailed, Err: r.err, Elapsed: elapsed}
	case <-taskCtx.Done():
		elapsed := time.Since(start)
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Kind: OutcomeFailed, Err: err, Elapsed: elapsed}
		}
		return Outcome[T]{Kind: OutcomeTimedOut, Err: &TimeoutError{Task: name, Timeout: timeout}, Elapsed: elapsed}
	}
}
