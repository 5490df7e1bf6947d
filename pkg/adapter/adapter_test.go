package adapter

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
)

func TestDeepSeekGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req deepseekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0 {
			t.Errorf("temperature should be sent explicitly")
		}

		fmt.Fprint(w, `{"id":"1","model":"deepseek-chat","choices":[{"index":0,"message":{"role":"assistant","content":"world"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer server.Close()

	a, err := NewDeepSeekAdapter("test-key", WithDeepSeekBaseURL(server.URL), WithDeepSeekHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	c, err := a.Generate(context.Background(), Request{Model: "deepseek-chat", System: "be brief", Prompt: "hello"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if c.Content != "world" || c.Adapter != "deepseek" || c.Model != "deepseek-chat" {
		t.Fatalf("unexpected completion: %+v", c)
	}
	if c.Usage == nil || c.Usage.TotalTokens != 4 {
		t.Fatalf("usage not propagated: %+v", c.Usage)
	}
	if len(c.Hash) != 16 {
		t.Fatalf("hash length = %d", len(c.Hash))
	}
}

func TestDeepSeekStatusIsAdapterError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	a, _ := NewDeepSeekAdapter("k", WithDeepSeekBaseURL(server.URL))
	_, err := a.Generate(context.Background(), Request{Model: "deepseek-chat", Prompt: "x"})
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) || adapterErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected AdapterError with 429, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("429 should be transient")
	}
}

func TestConstructorsRequireKey(t *testing.T) {
	if _, err := NewAnthropicAdapter(""); err == nil {
		t.Error("anthropic: expected error")
	}
	if _, err := NewOpenAIAdapter(""); err == nil {
		t.Error("openai: expected error")
	}
	if _, err := NewGoogleAdapter(""); err == nil {
		t.Error("google: expected error")
	}
	if _, err := NewDeepSeekAdapter(""); err == nil {
		t.Error("deepseek: expected error")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"429", &AdapterError{Status: 429}, true},
		{"503", &AdapterError{Status: 503}, true},
		{"400", &AdapterError{Status: 400}, false},
		{"temporary", &AdapterError{Temporary: true}, true},
		{"wrapped 502", fmt.Errorf("call: %w", &AdapterError{Status: 502}), true},
		{"plain", errors.New("bad request"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(fmt.Errorf("wrapped: %w", &AdapterError{Provider: "openai", Status: 429})) {
		t.Error("429 should be rate limited")
	}
	if IsRateLimited(&AdapterError{Status: 500}) {
		t.Error("500 is not rate limiting")
	}
	if got := (&AdapterError{Provider: "deepseek", Status: 503}).Error(); got != "deepseek: request failed (status=503)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapter().On("Ticker: AAPL", "bullish")

	c, err := m.Generate(context.Background(), Request{Prompt: "Ticker: AAPL\n\nNews"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if c.Content != "bullish" || c.Model != "mock-1" {
		t.Fatalf("unexpected completion: %+v", c)
	}

	c, _ = m.Generate(context.Background(), Request{Prompt: "other"})
	if !strings.HasPrefix(c.Content, "mock response:") {
		t.Fatalf("expected default response, got %q", c.Content)
	}
	if len(m.Calls()) != 2 {
		t.Fatalf("calls = %d", len(m.Calls()))
	}
}

func TestMockAdapterDelayHonorsContext(t *testing.T) {
	m := NewMockAdapter().WithDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Generate(ctx, Request{Prompt: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("delay ignored cancellation")
	}
}
