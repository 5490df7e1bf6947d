package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

func TestDiscord_Disabled(t *testing.T) {
	d := NewDiscord("")
	assert.False(t, d.Enabled())
	assert.NoError(t, d.Notify(context.Background(), Event{Symbol: "AAPL"}))
}

func TestDiscord_Notify(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	err := d.Notify(context.Background(), Event{
		Symbol:           "AAPL",
		Action:           decision.Sell,
		Quantity:         2,
		Reasoning:        "Taking profit.",
		OrderSummary:     "Order abc: SELL 2 share(s) of AAPL @ ~$190.00 | Status: accepted",
		ActionsUsedToday: 3,
		MaxActionsPerDay: 5,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "🔴 SELL - AAPL", e.Title)
	assert.Equal(t, ColorSell, e.Color)
	assert.Equal(t, "Taking profit.\n\n📋 Order abc: SELL 2 share(s) of AAPL @ ~$190.00 | Status: accepted", e.Description)
	assert.Equal(t, "2024-05-01T12:00:00Z", e.Timestamp)
	require.Len(t, e.Fields, 3)
	assert.Equal(t, "3 / 5", e.Fields[2].Value)
}

func TestDiscord_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Notify(context.Background(), Event{Symbol: "AAPL", Action: decision.Buy})
	assert.EqualError(t, err, "discord returned status: 429")
}

func TestEvent_BudgetLine(t *testing.T) {
	assert.Equal(t, "1 / ∞", Event{ActionsUsedToday: 1, MaxActionsPerDay: decision.Unlimited}.BudgetLine())
	assert.Equal(t, "4 / 5", Event{ActionsUsedToday: 4, MaxActionsPerDay: 5}.BudgetLine())
}

func TestActionColor(t *testing.T) {
	assert.Equal(t, ColorBuy, actionColor(decision.Buy))
	assert.Equal(t, ColorHold, actionColor(decision.Hold))
	assert.Equal(t, ColorUnknown, actionColor(decision.Action("SHORT")))
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMulti(t *testing.T) {
	first := &recordingNotifier{err: errors.New("first down")}
	second := &recordingNotifier{}

	err := Multi{first, nil, second}.Notify(context.Background(), Event{Symbol: "MSFT"})
	assert.EqualError(t, err, "first down")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1, "a failing notifier must not stop the others")

	assert.NoError(t, Multi{}.Notify(context.Background(), Event{}))
}
