// Package store persists the per-symbol action budget and the decision
// history shared between the trading loop and the dashboard.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VAnkata19/TraderAI/pkg/decision"
)

// DecisionRecord is one finished evaluation as stored in the journal.
type DecisionRecord struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"ticker"`
	Decision         decision.Action `json:"decision"`
	Quantity         int             `json:"quantity"`
	Confidence       float64         `json:"confidence"`
	Reasoning        string          `json:"reasoning"`
	NewsSummary      string          `json:"news_summary,omitempty"`
	ChartSummary     string          `json:"chart_summary,omitempty"`
	Executed         bool            `json:"executed"`
	OrderResult      string          `json:"order_result,omitempty"`
	Downgraded       bool            `json:"downgraded"`
	ActionsUsedToday int             `json:"actions_used_today"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Journal records decisions and lists the most recent ones, newest first.
type Journal interface {
	Record(ctx context.Context, rec DecisionRecord) error
	Recent(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// writeJSON writes v to path through a temp file and rename.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}
