package main

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/faultreplay"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

func TestRunThenEvaluate(t *testing.T) {
	root := t.TempDir()
	families, _ := measurement.Select([]string{"panel_angle", "power_sink"})
	opts := faultreplay.DefaultOptions()
	opts.Steps = 30
	opts.OnsetStep = 12
	opts.Truth = "PanelAngleFault.stuck.0.3"
	db, err := faultreplay.Generate(families, opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	layout, err := faultreplay.WriteDatabase(root, db)
	if err != nil {
		t.Fatalf("write database: %v", err)
	}

	resultsDir := filepath.Join(root, "results")
	summaryPath := filepath.Join(root, "out", "summary.jsonl")
	sqlitePath := filepath.Join(root, "out", "runs.db")
	metricsPath := filepath.Join(root, "out", "mbfid.prom")

	var (
		mu      sync.Mutex
		notices []schema.FaultNotice
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var n schema.FaultNotice
		if err := json.Unmarshal(body, &n); err == nil {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cmd := New()
	cmd.SetArgs([]string{
		"run",
		"--sim-dir", layout.SimDir,
		"--families", "panel_angle,power_sink",
		"--results-dir", resultsDir,
		"--summary", summaryPath,
		"--sqlite", sqlitePath,
		"--metrics-textfile", metricsPath,
		"--metrics-addr", "127.0.0.1:0",
		"--log-level", "error",
		"--webhook-url", server.URL,
		layout.TruthPath,
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}

	table, err := results.LoadCSV(filepath.Join(resultsDir, "example_1.csv"))
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	labels, _ := table.Column("PANEL_ANGLE_ID")
	if labels[len(labels)-1] != "Panel Angle Stuck near 0.3 [rad]" {
		t.Fatalf("unexpected final label: %q", labels[len(labels)-1])
	}

	mu.Lock()
	if len(notices) != 1 || notices[0].Key != "PANEL_ANGLE_ID" || notices[0].OnsetNS != 12_000_000_000 {
		t.Fatalf("unexpected notices: %+v", notices)
	}
	mu.Unlock()

	file, err := os.Open(summaryPath)
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	var summary schema.RunSummary
	if !scanner.Scan() {
		t.Fatalf("summary file is empty")
	}
	if err := json.Unmarshal(scanner.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}

	store, err := results.OpenStore(sqlitePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	rec, err := store.Run(cmd.Context(), summary.RunID)
	if err != nil || rec.Steps != 30 {
		t.Fatalf("stored run mismatch: %+v %v", rec, err)
	}
	if _, err := os.Stat(metricsPath); err != nil {
		t.Fatalf("metrics textfile missing: %v", err)
	}

	reportsPath := filepath.Join(root, "out", "reports.json")
	eval := New()
	eval.SetArgs([]string{
		"evaluate",
		"--results-dir", resultsDir,
		"--truth-dir", filepath.Join(root, "truth"),
		"--out", reportsPath,
		"--min-accuracy", "1",
		"--max-detection-fpr", "0",
	})
	if err := eval.Execute(); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	payload, err := os.ReadFile(reportsPath)
	if err != nil {
		t.Fatalf("read reports: %v", err)
	}
	var reports []schema.EvaluationReport
	if err := json.Unmarshal(payload, &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Key != "PANEL_ANGLE_ID" || !reports[0].Correct {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if reports[0].FaultTimeNS != 12_000_000_000 {
		t.Fatalf("unexpected fault time: %d", reports[0].FaultTimeNS)
	}
}

func TestRunRequiresSimDir(t *testing.T) {
	cmd := New()
	cmd.SetArgs([]string{"run", "truth.csv"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --sim-dir")
	}
}

func TestFamilies(t *testing.T) {
	cmd := New()
	cmd.SetArgs([]string{"families"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("families: %v", err)
	}
}

func TestCloseSummariesReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := file.WriteString("{}\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := closeSummaries(file); err != nil {
		t.Fatalf("close summaries: %v", err)
	}
	payload, err := os.ReadFile(path)
	if err != nil || string(payload) != "{}\n" {
		t.Fatalf("summary content lost: %q %v", payload, err)
	}

	if err := closeSummaries(file); err == nil {
		t.Fatalf("expected error closing an already closed summary file")
	}
}
