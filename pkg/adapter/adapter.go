package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a request to the model and returns its completion.
	Generate(ctx context.Context, req Request) (*Completion, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request is a single-turn chat request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return r.MaxTokens
}

const defaultMaxTokens = 4096

// Completion is the text a model returned for a request.
type Completion struct {
	Content   string    `json:"content"`
	Adapter   string    `json:"adapter"`
	Model     string    `json:"model"`
	Hash      string    `json:"hash"`
	Usage     *Usage    `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCompletion builds a Completion with its content hash.
func NewCompletion(content, adapterName, model string) *Completion {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte(adapterName))
	h.Write([]byte(model))
	return &Completion{
		Content:   content,
		Adapter:   adapterName,
		Model:     model,
		Hash:      hex.EncodeToString(h.Sum(nil))[:16],
		CreatedAt: time.Now().UTC(),
	}
}
