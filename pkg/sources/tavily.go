package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilySource searches recent news through the Tavily API. Tavily's own AI
// answer is disabled; the summarizer chain does the analysis.
type TavilySource struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	days       int
}

// TavilyOption configures a TavilySource.
type TavilyOption func(*TavilySource)

// WithTavilyAPIKey sets the API key (alternative to env var).
func WithTavilyAPIKey(key string) TavilyOption {
	return func(t *TavilySource) {
		t.apiKey = key
	}
}

// WithTavilyEndpoint overrides the search endpoint.
func WithTavilyEndpoint(endpoint string) TavilyOption {
	return func(t *TavilySource) {
		t.endpoint = endpoint
	}
}

// WithLookbackDays limits results to the last n days.
func WithLookbackDays(n int) TavilyOption {
	return func(t *TavilySource) {
		t.days = n
	}
}

// NewTavilySource creates a Tavily-backed news source.
func NewTavilySource(opts ...TavilyOption) *TavilySource {
	t := &TavilySource{
		apiKey:   os.Getenv("TAVILY_API_KEY"),
		endpoint: tavilyEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		days: 3,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the source identifier.
func (t *TavilySource) Name() string {
	return "tavily"
}

// Available returns true if the API key is configured.
func (t *TavilySource) Available() bool {
	return t.apiKey != ""
}

type tavilyRequest struct {
	Query         string `json:"query"`
	Topic         string `json:"topic"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
	Days          int    `json:"days,omitempty"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search looks up "<SYMBOL> stock news".
func (t *TavilySource) Search(ctx context.Context, symbol string, limit int) ([]Document, error) {
	if !t.Available() {
		return nil, fmt.Errorf("Tavily API key not configured")
	}

	payload := tavilyRequest{
		Query:         fmt.Sprintf("%s stock news", symbol),
		Topic:         "news",
		SearchDepth:   "advanced",
		IncludeAnswer: false,
		MaxResults:    limit,
		Days:          t.days,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API error: status %d", resp.StatusCode)
	}

	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]Document, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		docs = append(docs, Document{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Content,
			Source:    "tavily",
			Published: parsePublished(r.PublishedDate),
		})
	}
	return docs, nil
}
