package attribution

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

const second = int64(1_000_000_000)

func resultTable(t *testing.T, key string, ls ...string) *results.Table {
	t.Helper()
	times := make([]int64, len(ls))
	seq := make(identification.ModeSequence, len(ls))
	for i, l := range ls {
		times[i] = int64(i) * second
		seq[i] = identification.ModeEntry{Time: times[i], Label: l}
	}
	table := results.NewTable(times)
	if err := table.SetColumn(key, seq); err != nil {
		t.Fatalf("set column: %v", err)
	}
	return table
}

func TestEvaluateScoresMappedEvents(t *testing.T) {
	table := resultTable(t, "CSS_ID", nom, nom, nom, off, off, off)
	events := []FaultEvent{
		{Name: "cssSignal", Message: "CSSFAULT_OFF [3]", TimeS: 2},
		{Name: "thruster", Message: "ignored", TimeS: 1},
		{Name: "powerSink", Message: "no column", TimeS: 1},
	}
	logger, hook := test.NewNullLogger()

	reports := Evaluate("example_1", table, events, nil, logger)
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.Key != "CSS_ID" || r.FaultTimeNS != 2*second || !r.Correct {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Identification.TP != 3 || r.Identification.FN != 1 || r.Identification.Latency != 1 {
		t.Fatalf("unexpected identification stats: %+v", r.Identification)
	}
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("expected a warning per skipped event, got %d", len(hook.AllEntries()))
	}

	if acc := Accuracy(reports); acc != 1 {
		t.Fatalf("unexpected accuracy: %f", acc)
	}
	matrix := BuildConfusionMatrix(reports)
	if matrix[MatrixKey{Actual: "CSSFAULT_OFF_sensor_3", Predicted: off}] != 1 {
		t.Fatalf("unexpected matrix: %v", matrix)
	}
}

func TestDeploymentSettleTime(t *testing.T) {
	truth, err := telemetry.NewTable([]string{deploymentAngleColumn})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	angles := []float64{0, 0.5, 1.0, 1.2, 1.2, 1.2}
	for i, a := range angles {
		ts := int64(300+2*i) * second
		if err := truth.Append(ts, []float64{a}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := DeploymentSettleTime(truth)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got != 308*second {
		t.Fatalf("expected settle at 308s, got %d", got)
	}
}

func TestAccuracyEmpty(t *testing.T) {
	if Accuracy(nil) != 0 {
		t.Fatalf("expected zero accuracy for no reports")
	}
}

func TestEvaluateDeploymentFallsBackToLoggedTime(t *testing.T) {
	table := resultTable(t, "PANEL_DEPLOY_ID", nom, nom, "Panel Deployment Stuck near 50.0%")
	truth, _ := telemetry.NewTable([]string{"Net Power [W]"})
	logger, hook := test.NewNullLogger()

	reports := Evaluate("example_2", table, []FaultEvent{{Name: "deployment", TimeS: 2}}, truth, logger)
	if len(reports) != 1 || reports[0].FaultTimeNS != 2*second {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if !reports[0].Correct || hook.LastEntry() == nil {
		t.Fatalf("expected a correct report and a fallback warning")
	}
}
