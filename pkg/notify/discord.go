package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// Embed colors per action.
const (
	ColorBuy     = 0x2ECC71
	ColorSell    = 0xE74C3C
	ColorHold    = 0xF39C12
	ColorUnknown = 0x95A5A6
)

// Discord posts events to a Discord webhook as rich embeds.
type Discord struct {
	webhookURL string
	enabled    bool
	httpClient *http.Client
	now        func() time.Time
}

// NewDiscord creates a notifier. An empty URL disables it.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Enabled reports whether a webhook is configured.
func (d *Discord) Enabled() bool {
	return d.enabled
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Fields      []embedField      `json:"fields"`
	Footer      map[string]string `json:"footer"`
	Timestamp   string            `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Notify posts e. It is a no-op when no webhook is configured.
func (d *Discord) Notify(ctx context.Context, e Event) error {
	if !d.enabled {
		return nil
	}

	description := e.Reasoning
	if e.OrderSummary != "" {
		description = fmt.Sprintf("%s\n\n📋 %s", e.Reasoning, e.OrderSummary)
	}

	payload := webhookPayload{Embeds: []embed{{
		Title:       fmt.Sprintf("%s - %s", actionLabel(e.Action), e.Symbol),
		Description: description,
		Color:       actionColor(e.Action),
		Fields: []embedField{
			{Name: "Decision", Value: string(e.Action), Inline: true},
			{Name: "Ticker", Value: e.Symbol, Inline: true},
			{Name: "Actions today", Value: e.BudgetLine(), Inline: true},
		},
		Footer:    map[string]string{"text": "TraderAI | Automated trading alert"},
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}}}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}

func actionLabel(a decision.Action) string {
	switch a {
	case decision.Buy:
		return "🟢 BUY"
	case decision.Sell:
		return "🔴 SELL"
	default:
		return "🟡 HOLD"
	}
}

func actionColor(a decision.Action) int {
	switch a {
	case decision.Buy:
		return ColorBuy
	case decision.Sell:
		return ColorSell
	case decision.Hold:
		return ColorHold
	default:
		return ColorUnknown
	}
}
