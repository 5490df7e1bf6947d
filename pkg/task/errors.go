package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrProvider matches every ProviderError and TimeoutError via errors.Is.
var ErrProvider = errors.New("provider error")

// ProviderError reports a failed retrieval, summarization or decision call.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// TimeoutError is reported when a task exceeds its deadline.
// It is kept distinct from ProviderError so timeout rates can be counted on their own.
type TimeoutError struct {
	Task    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("task %s timed out after %s", e.Task, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrProvider || target == context.DeadlineExceeded
}

// RequiredTaskError aborts an orchestration call when a required task fails.
type RequiredTaskError struct {
	Task    string
	Outcome OutcomeKind
	Err     error
}

func (e *RequiredTaskError) Error() string {
	return fmt.Sprintf("required task %s failed (%s): %v", e.Task, e.Outcome, e.Err)
}

func (e *RequiredTaskError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
