package results

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	times := []int64{0, 10, 20}
	table := NewTable(times)
	css := sequence(times, "Nominal", "CSS[1] Is Off", "CSS[1] Is Off")
	if err := table.SetColumn("CSS_ID", css); err != nil {
		t.Fatalf("set column: %v", err)
	}
	if err := table.SetColumn("POWER_SINK_ID", sequence(times, "Nominal", "Nominal", "Nominal")); err != nil {
		t.Fatalf("set column: %v", err)
	}

	rec := RunRecord{RunID: "run-1", ExampleID: "example_1", TruthPath: "truth/example_1/telemetry.csv"}
	if err := s.SaveRun(ctx, rec, table); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.Labels(ctx, "run-1", "CSS_ID")
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if !reflect.DeepEqual(got, css) {
		t.Fatalf("unexpected labels: %v", got)
	}

	stored, err := s.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stored.Steps != 3 || stored.ExampleID != "example_1" || stored.CreatedAt.IsZero() {
		t.Fatalf("unexpected run record: %+v", stored)
	}

	counts, err := s.LabelCounts(ctx, "CSS_ID")
	if err != nil {
		t.Fatalf("LabelCounts: %v", err)
	}
	if counts["CSS[1] Is Off"] != 2 || counts["Nominal"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestStoreRejectsDuplicateRun(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	table := NewTable([]int64{0})
	_ = table.SetColumn("CSS_ID", sequence([]int64{0}, "Nominal"))

	rec := RunRecord{RunID: "run-1", ExampleID: "e", TruthPath: "p"}
	if err := s.SaveRun(ctx, rec, table); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveRun(ctx, rec, table); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}
	got, err := s.Labels(ctx, "run-1", "CSS_ID")
	if err != nil || len(got) != 1 {
		t.Fatalf("failed save must not add labels: %v %v", got, err)
	}
}

func TestStoreMissingRun(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Run(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}
