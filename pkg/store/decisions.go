package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// DecisionsFile is the decision log file name inside the data directory.
const DecisionsFile = "decisions.json"

const (
	maxStoredDecisions = 1000
	decisionRetention  = 30 * 24 * time.Hour
)

// DecisionLog is a JSON file journal. The file holds records oldest first,
// capped at 1000 entries; records older than 30 days are not returned.
type DecisionLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewDecisionLog creates a log stored in dir.
func NewDecisionLog(dir string) *DecisionLog {
	return &DecisionLog{path: filepath.Join(dir, DecisionsFile), now: time.Now}
}

// Record appends rec.
func (l *DecisionLog) Record(ctx context.Context, rec DecisionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []DecisionRecord
	if _, err := readJSON(l.path, &records); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	records = append(records, rec)
	if len(records) > maxStoredDecisions {
		records = records[len(records)-maxStoredDecisions:]
	}
	return writeJSON(l.path, records)
}

// Recent returns up to limit records from the last 30 days, newest first.
// A limit of zero or less returns all of them.
func (l *DecisionLog) Recent(ctx context.Context, limit int) ([]DecisionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []DecisionRecord
	if _, err := readJSON(l.path, &records); err != nil {
		return nil, err
	}

	cutoff := l.now().Add(-decisionRetention)
	out := make([]DecisionRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
