package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses are matched by substring against the prompt, in insertion order.
type MockAdapter struct {
	mu              sync.Mutex
	rules           []mockRule
	defaultResponse string
	delay           time.Duration
	err             error
	calls           []Request
}

type mockRule struct {
	match    string
	response string
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		defaultResponse: "mock response:",
	}
}

// On registers a response for prompts containing match.
func (a *MockAdapter) On(match, response string) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules = append(a.rules, mockRule{match: match, response: response})
	return a
}

// WithDelay makes every call wait d, honoring context cancellation.
func (a *MockAdapter) WithDelay(d time.Duration) *MockAdapter {
	a.delay = d
	return a
}

// WithError makes every call fail with err.
func (a *MockAdapter) WithError(err error) *MockAdapter {
	a.err = err
	return a
}

// Calls returns the requests received so far.
func (a *MockAdapter) Calls() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.calls))
	copy(out, a.calls)
	return out
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic completion for the prompt.
func (a *MockAdapter) Generate(ctx context.Context, req Request) (*Completion, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	rules := a.rules
	a.mu.Unlock()

	if a.delay > 0 {
		timer := time.NewTimer(a.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if a.err != nil {
		return nil, a.err
	}

	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	for _, rule := range rules {
		if strings.Contains(req.Prompt, rule.match) {
			return NewCompletion(rule.response, a.Name(), model), nil
		}
	}
	return NewCompletion(fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt), a.Name(), model), nil
}
