// Package evidence writes a per-run audit bundle for trading evaluations:
// runs/<run-id>/run.json plus one stages/<stage>.json per pipeline stage.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata and the final decision.
type RunRecord struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	StartedAt        time.Time `json:"started_at"`
	DurationMillis   int64     `json:"duration_ms"`
	Decision         string    `json:"decision"`
	Quantity         int       `json:"quantity"`
	Confidence       float64   `json:"confidence"`
	Executed         bool      `json:"executed"`
	OrderResult      string    `json:"order_result,omitempty"`
	Downgraded       bool      `json:"downgraded"`
	DowngradeReason  string    `json:"downgrade_reason,omitempty"`
	ActionsUsedToday int       `json:"actions_used_today"`
	MaxActionsPerDay int       `json:"max_actions_per_day"`
	Error            string    `json:"error,omitempty"`
}

// StageRecord captures evidence for a single pipeline stage.
type StageRecord struct {
	Name           string       `json:"name"`
	Status         string       `json:"status"`
	Output         string       `json:"output,omitempty"`
	OutputHash     string       `json:"output_hash,omitempty"`
	Error          string       `json:"error,omitempty"`
	Tasks          []TaskRecord `json:"tasks,omitempty"`
	DurationMillis int64        `json:"duration_ms"`
}

// TaskRecord captures one orchestrated LLM call.
type TaskRecord struct {
	Name           string `json:"name"`
	Outcome        string `json:"outcome"`
	UsedFallback   bool   `json:"used_fallback"`
	Error          string `json:"error,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0700); err != nil {
		return nil, err
	}
	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<stage>.json, filling in the
// output hash.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	if record.Output != "" && record.OutputHash == "" {
		record.OutputHash = Hash(record.Output)
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
