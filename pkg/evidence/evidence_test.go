package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestEvidenceWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-123")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	run := RunRecord{
		ID:        "run-123",
		Symbol:    "AAPL",
		StartedAt: time.Now().UTC(),
		Decision:  "BUY",
		Quantity:  2,
		Executed:  true,
	}
	if err := writer.WriteRun(run); err != nil {
		t.Fatalf("write run: %v", err)
	}

	stage := StageRecord{
		Name:   "analyze",
		Status: "ok",
		Output: "BUY 2",
		Tasks: []TaskRecord{
			{Name: "news_summary", Outcome: "ok"},
			{Name: "chart_summary", Outcome: "timeout", UsedFallback: true},
		},
	}
	if err := writer.WriteStage(stage); err != nil {
		t.Fatalf("write stage: %v", err)
	}

	if _, err := os.Stat(filepath.Join(writer.RunDir(), "run.json")); err != nil {
		t.Fatalf("missing run.json: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(writer.RunDir(), "stages", "analyze.json"))
	if err != nil {
		t.Fatalf("missing stage file: %v", err)
	}
	var got StageRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode stage: %v", err)
	}
	if got.OutputHash != Hash("BUY 2") {
		t.Errorf("output hash = %s", got.OutputHash)
	}
	if len(got.Tasks) != 2 || !got.Tasks[1].UsedFallback {
		t.Errorf("tasks not recorded: %+v", got.Tasks)
	}

	if runtime.GOOS != "windows" {
		assertPerm(t, writer.RunDir(), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "stages"), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "run.json"), 0600)
		assertPerm(t, filepath.Join(writer.RunDir(), "stages", "analyze.json"), 0600)
	}
}

func TestNewWriterValidation(t *testing.T) {
	if _, err := NewWriter("", "run"); err == nil {
		t.Error("expected error for empty base dir")
	}
	if _, err := NewWriter(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty run ID")
	}
}

func TestWriteStageRequiresName(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.WriteStage(StageRecord{}); err == nil {
		t.Error("expected error for unnamed stage")
	}
}

func assertPerm(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if got := info.Mode().Perm(); got != want {
		t.Errorf("%s perm = %o, want %o", path, got, want)
	}
}
