package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
)

const dailyJSON = `[
	{"date": "2025-04-07", "close": 100},
	{"date": "2025-04-08", "close": 101},
	{"date": "2025-04-09", "close": 102}
]`

const hourlyCSV = `date,v
2025-04-08 00:00:00,1
2025-04-08 01:00:00,2
2025-04-08 02:00:00,3
`

const testManifest = `
output_dir: out
state_file: state.json
defaults:
  time_zone: UTC
jobs:
  - name: daily-hourly
    inputs:
      - name: d
        path: daily.json
      - path: h.csv
  - name: broken
    inputs:
      - path: unordered.json
`

type fakeNotifier struct {
	messages []string
	threads  []string
}

func (f *fakeNotifier) PostMessage(_ context.Context, text string) (string, error) {
	f.messages = append(f.messages, text)
	return "1.0", nil
}

func (f *fakeNotifier) PostThread(_ context.Context, ts, text string) error {
	f.threads = append(f.threads, ts+" "+text)
	return nil
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func setupBatch(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "daily.json", dailyJSON)
	writeTestFile(t, dir, "h.csv", hourlyCSV)
	writeTestFile(t, dir, "unordered.json", `[{"date": "2025-04-09"}, {"date": "2025-04-08"}]`)
	writeTestFile(t, dir, "manifest.yaml", testManifest)
	return dir
}

func newTestRunner(dir string, n Notifier, cfg Config) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.ManifestPath = filepath.Join(dir, "manifest.yaml")
	proc := processor.New(merge.DefaultOptions(), logger)
	return NewRunner(cfg, proc, n, logger)
}

func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var rows []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var row map[string]any
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestRunner_Run(t *testing.T) {
	dir := setupBatch(t)
	n := &fakeNotifier{}

	summaries, err := newTestRunner(dir, n, Config{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	ok := summaries[0]
	if ok.Status != StatusOK || ok.Base != "h" || ok.Rows != 3 {
		t.Errorf("unexpected summary: %+v", ok)
	}
	rows := readJSONL(t, filepath.Join(dir, "out", "daily-hourly.jsonl"))
	if len(rows) != 3 {
		t.Fatalf("expected 3 output rows, got %d", len(rows))
	}
	if rows[2]["d_close"] != float64(101) || rows[2]["h_v"] != float64(3) {
		t.Errorf("unexpected row: %v", rows[2])
	}

	broken := summaries[1]
	if broken.Status != StatusFailed || broken.ErrorKind != "ordering" {
		t.Errorf("expected ordering failure, got %+v", broken)
	}

	if len(n.messages) != 1 || !strings.Contains(n.messages[0], "1 ok, 1 failed") {
		t.Errorf("unexpected summary messages: %v", n.messages)
	}
	if len(n.threads) != 1 || !strings.Contains(n.threads[0], "broken") {
		t.Errorf("expected one failure thread reply, got %v", n.threads)
	}

	state, err := LoadState(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if _, ok := state.Jobs["daily-hourly"]; !ok {
		t.Error("expected daily-hourly in state")
	}
	if _, ok := state.Jobs["broken"]; ok {
		t.Error("failed job must not be marked processed")
	}
	if state.RowsWritten != 3 || len(state.Errors) != 1 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestRunner_SkipsUnchangedAndRerunsChanged(t *testing.T) {
	dir := setupBatch(t)

	if _, err := newTestRunner(dir, nil, Config{}).Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	summaries, err := newTestRunner(dir, nil, Config{}).Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summaries[0].Status != StatusSkipped {
		t.Errorf("expected unchanged job to be skipped, got %s", summaries[0].Status)
	}
	if summaries[1].Status != StatusFailed {
		t.Errorf("expected failed job to run again, got %s", summaries[1].Status)
	}

	writeTestFile(t, dir, "h.csv", hourlyCSV+"2025-04-08 03:00:00,4\n")
	summaries, err = newTestRunner(dir, nil, Config{}).Run(context.Background())
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if summaries[0].Status != StatusOK || summaries[0].Rows != 4 {
		t.Errorf("expected changed job to re-run with 4 rows, got %+v", summaries[0])
	}

	summaries, err = newTestRunner(dir, nil, Config{Force: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if summaries[0].Status != StatusOK {
		t.Errorf("expected forced job to run, got %s", summaries[0].Status)
	}
}

func TestRunner_DryRun(t *testing.T) {
	dir := setupBatch(t)

	summaries, err := newTestRunner(dir, nil, Config{DryRun: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summaries[0].Status != StatusOK || summaries[0].Output != "" {
		t.Errorf("unexpected dry-run summary: %+v", summaries[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("dry run must not write output")
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); !os.IsNotExist(err) {
		t.Error("dry run must not write state")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	dir := setupBatch(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summaries, err := newTestRunner(dir, nil, Config{}).Run(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no jobs to run, got %d", len(summaries))
	}
}

func TestRunner_MissingInput(t *testing.T) {
	dir := setupBatch(t)
	if err := os.Remove(filepath.Join(dir, "h.csv")); err != nil {
		t.Fatal(err)
	}

	summaries, err := newTestRunner(dir, nil, Config{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summaries[0].Status != StatusFailed || summaries[0].ErrorKind != "load" {
		t.Errorf("expected load failure, got %+v", summaries[0])
	}
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary([]JobSummary{
		{Name: "a", Status: StatusOK, Rows: 10, Dropped: 2, Base: "h", Elapsed: time.Second},
		{Name: "b", Status: StatusFailed, ErrorKind: "ordering"},
		{Name: "c", Status: StatusSkipped},
	})

	for _, want := range []string{
		"3 jobs: 1 ok, 1 failed, 1 skipped",
		"a: 10 rows, 2 dropped (base h)",
		"b: FAILED [ordering]",
		"c: unchanged, skipped",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, text)
		}
	}
}
