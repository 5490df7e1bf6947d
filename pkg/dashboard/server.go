// Package dashboard serves the operator HTTP surface: health, Prometheus
// metrics, recent decisions, today's action counters and a websocket feed
// of finished evaluations.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VAnkata19/TraderAI/pkg/store"
)

const defaultDecisionLimit = 50

// ActionsReader returns today's per-symbol action counts.
type ActionsReader interface {
	Load(ctx context.Context) (map[string]int, error)
}

// Server exposes the dashboard endpoints.
type Server struct {
	addr             string
	hub              *Hub
	journal          store.Journal
	actions          ActionsReader
	maxActionsPerDay int
}

// NewServer creates a server. journal and actions may be nil, in which case
// their endpoints return 503.
func NewServer(addr string, hub *Hub, journal store.Journal, actions ActionsReader, maxActionsPerDay int) *Server {
	return &Server{
		addr:             addr,
		hub:              hub,
		journal:          journal,
		actions:          actions,
		maxActionsPerDay: maxActionsPerDay,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/decisions", s.handleDecisions)
	mux.HandleFunc("/api/actions", s.handleActions)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[dashboard] listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "decision journal not configured", http.StatusServiceUnavailable)
		return
	}
	limit := defaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.DecisionRecord{}
	}
	writeJSON(w, records)
}

type actionsResponse struct {
	Actions          map[string]int `json:"actions"`
	MaxActionsPerDay int            `json:"max_actions_per_day"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		http.Error(w, "action counter not configured", http.StatusServiceUnavailable)
		return
	}
	counts, err := s.actions.Load(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, actionsResponse{Actions: counts, MaxActionsPerDay: s.maxActionsPerDay})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[dashboard] encode response: %v", err)
	}
}
