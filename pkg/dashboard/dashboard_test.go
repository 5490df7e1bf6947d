package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/notify"
	"github.com/VAnkata19/TraderAI/pkg/store"
)

type staticActions struct {
	counts map[string]int
	err    error
}

func (s staticActions) Load(ctx context.Context) (map[string]int, error) {
	return s.counts, s.err
}

func TestHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", nil, nil, nil, 5).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/decisions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDecisionsEndpoint(t *testing.T) {
	journal := store.NewDecisionLog(t.TempDir())
	ctx := context.Background()
	require.NoError(t, journal.Record(ctx, store.DecisionRecord{ID: "1", Symbol: "AAPL", Decision: decision.Buy, Quantity: 2, Timestamp: time.Now().UTC()}))
	require.NoError(t, journal.Record(ctx, store.DecisionRecord{ID: "2", Symbol: "MSFT", Decision: decision.Hold, Timestamp: time.Now().UTC()}))

	srv := httptest.NewServer(NewServer(":0", nil, journal, nil, 5).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/decisions?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []store.DecisionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	bad, err := http.Get(srv.URL + "/api/decisions?limit=zero")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestActionsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", nil, nil, staticActions{counts: map[string]int{"AAPL": 3}}, decision.Unlimited).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/actions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got actionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]int{"AAPL": 3}, got.Actions)
	assert.Equal(t, decision.Unlimited, got.MaxActionsPerDay)
}

func TestActionsEndpointError(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", nil, nil, staticActions{err: errors.New("disk gone")}, 5).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/actions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHubBroadcastsToWebsocketClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer(":0", hub, nil, nil, 5).Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	event := notify.Event{Symbol: "AAPL", Action: decision.Buy, Quantity: 2, ActionsUsedToday: 1, MaxActionsPerDay: 5}
	require.NoError(t, hub.Notify(context.Background(), event))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string       `json:"type"`
		Data notify.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "order", msg.Type)
	assert.Equal(t, event, msg.Data)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
