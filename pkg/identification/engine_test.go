package identification

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

const stepNS = int64(1_000_000_000)

func panelAngle(t *testing.T) measurement.Family {
	t.Helper()
	f, ok := measurement.Lookup("panel_angle")
	if !ok {
		t.Fatalf("panel_angle family missing")
	}
	return f
}

// trace builds a single-column table sampled once per second.
func trace(t *testing.T, column string, values ...float64) *telemetry.Table {
	t.Helper()
	tbl, err := telemetry.NewTable([]string{column})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for i, v := range values {
		if err := tbl.Append(int64(i)*stepNS, []float64{v}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return tbl
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// stepUp is zero before onset and v from onset on.
func stepUp(n, onset int, v float64) []float64 {
	out := make([]float64, n)
	for i := onset; i < n; i++ {
		out[i] = v
	}
	return out
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newEngine(t *testing.T, family measurement.Family, trajectories []Trajectory, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := NewEngine(context.Background(), family, trajectories, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestRunNominalOnly(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	values := []float64{0.1, 0.3, 0.7, 1.1, 1.5, 1.5, 1.5, 1.5, 1.5, 1.5}
	e := newEngine(t, f, []Trajectory{{Name: NominalMode, Table: trace(t, col, values...)}})

	seq, err := e.Run(context.Background(), trace(t, col, values...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seq) != len(values) {
		t.Fatalf("expected one label per row, got %d", len(seq))
	}
	for i, entry := range seq {
		if entry.Label != NominalMode {
			t.Fatalf("step %d: expected Nominal, got %q", i, entry.Label)
		}
		if entry.Time != int64(i)*stepNS {
			t.Fatalf("step %d: unexpected time %d", i, entry.Time)
		}
	}
}

func TestRunIdentifiesMatchingFault(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	const n, onset = 20, 10
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(n, 0)...)},
		{Name: "Stuck at 1.0 rad", Table: trace(t, col, stepUp(n, onset, 1)...)},
		{Name: "Stuck at -1.0 rad", Table: trace(t, col, stepUp(n, onset, -1)...)},
	}
	e := newEngine(t, f, bank)

	seq, err := e.Run(context.Background(), trace(t, col, stepUp(n, onset, 1)...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, label := range seq.Labels() {
		want := NominalMode
		if i >= onset {
			want = "Stuck at 1.0 rad"
		}
		if label != want {
			t.Fatalf("step %d: expected %q, got %q", i, want, label)
		}
	}
	if seq.Transitions() != 1 {
		t.Fatalf("expected a single transition, got %d", seq.Transitions())
	}
}

func TestRunUnknownWhenNothingFits(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(8, 0)...)},
		{Name: "fault", Table: trace(t, col, constant(8, 1)...)},
	}
	e := newEngine(t, f, bank)

	seq, err := e.Run(context.Background(), trace(t, col, constant(8, 5)...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, label := range seq.Labels() {
		if label != UnknownMode {
			t.Fatalf("step %d: expected %q, got %q", i, UnknownMode, label)
		}
	}
}

func TestRunHysteresisBetweenIndistinguishableFaults(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	const n = 12
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(n, 0)...)},
		{Name: "a", Table: trace(t, col, constant(n, 2)...)},
		{Name: "b", Table: trace(t, col, constant(n, 2)...)},
	}
	e := newEngine(t, f, bank)

	seq, err := e.Run(context.Background(), trace(t, col, constant(n, 2)...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, label := range seq.Labels() {
		if label != "a" {
			t.Fatalf("step %d: expected sticky %q, got %q", i, "a", label)
		}
	}
}

func TestRunIsDeterministicAcrossRuns(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	const n = 30
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(n, 0)...)},
		{Name: "small", Table: trace(t, col, stepUp(n, 5, 0.25)...)},
		{Name: "large", Table: trace(t, col, stepUp(n, 5, 0.5)...)},
	}
	truth := trace(t, col, stepUp(n, 5, 0.4)...)
	e := newEngine(t, f, bank)

	first, err := e.Run(context.Background(), truth)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.Run(context.Background(), truth)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ:\n%v\n%v", first, second)
	}

	fresh := newEngine(t, f, bank)
	third, err := fresh.Run(context.Background(), truth)
	if err != nil {
		t.Fatalf("fresh run: %v", err)
	}
	if !reflect.DeepEqual(first, third) {
		t.Fatalf("fresh engine differs:\n%v\n%v", first, third)
	}
}

func TestRunMissingReferenceAborts(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	short := trace(t, col, constant(4, 0)...)
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(8, 0)...)},
		{Name: "short", Table: short},
	}
	var observed int
	e := newEngine(t, f, bank, WithObserver(ObserverFunc(func(StepReport) { observed++ })))

	seq, err := e.Run(context.Background(), trace(t, col, constant(8, 0)...))
	if !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected missing reference error, got %v", err)
	}
	var missing *MissingReferenceError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingReferenceError, got %T", err)
	}
	if missing.Hypothesis != "short" || missing.Time != 4*stepNS {
		t.Fatalf("unexpected error detail: %+v", missing)
	}
	if seq != nil {
		t.Fatalf("aborted run must not return a partial sequence: %v", seq)
	}
	if observed != 4 {
		t.Fatalf("no step past the failure should be observed, got %d", observed)
	}
}

func TestRunTruthErrors(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	e := newEngine(t, f, []Trajectory{{Name: NominalMode, Table: trace(t, col, constant(4, 0)...)}})

	empty, _ := telemetry.NewTable([]string{col})
	if _, err := e.Run(context.Background(), empty); !errors.Is(err, ErrEmptyTrace) {
		t.Fatalf("expected empty trace error, got %v", err)
	}

	if _, err := e.Run(context.Background(), trace(t, "Supply Power [W]", 1, 2)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for missing truth column, got %v", err)
	}

	unordered, _ := telemetry.NewTable([]string{col})
	_ = unordered.Append(2*stepNS, []float64{0})
	_ = unordered.Append(1*stepNS, []float64{0})
	if _, err := e.Run(context.Background(), unordered); !errors.Is(err, ErrUnorderedTrace) {
		t.Fatalf("expected unordered trace error, got %v", err)
	}
}

func TestNewEngineConfigurationErrors(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	nominal := trace(t, col, 0, 0)

	cases := map[string]struct {
		family measurement.Family
		bank   []Trajectory
		opts   []Option
	}{
		"empty bank": {family: f},
		"duplicate hypothesis": {family: f, bank: []Trajectory{
			{Name: NominalMode, Table: nominal},
			{Name: NominalMode, Table: nominal},
		}},
		"unnamed hypothesis": {family: f, bank: []Trajectory{{Table: nominal}}},
		"column mismatch": {family: f, bank: []Trajectory{
			{Name: NominalMode, Table: trace(t, "Net Power [W]", 0, 0)},
		}},
		"empty trajectory": {family: f, bank: []Trajectory{{Name: NominalMode, Table: trace(t, col)}}},
		"invalid family":   {family: measurement.Family{Slug: "none"}, bank: []Trajectory{{Name: NominalMode, Table: nominal}}},
		"bad normalization": {family: f, bank: []Trajectory{{Name: NominalMode, Table: nominal}},
			opts: []Option{WithNormalization("sqrt")}},
	}
	for name, tc := range cases {
		opts := append([]Option{WithLogger(quietLogger())}, tc.opts...)
		_, err := NewEngine(context.Background(), tc.family, tc.bank, opts...)
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestBankOrderPutsNominalFirst(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	e := newEngine(t, f, []Trajectory{
		{Name: "z", Table: trace(t, col, 0)},
		{Name: NominalMode, Table: trace(t, col, 0)},
		{Name: "a", Table: trace(t, col, 0)},
	})
	want := []string{NominalMode, "z", "a"}
	if got := e.Bank().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected bank order: %v", got)
	}
}

func TestRunDegenerateCovarianceFallsBack(t *testing.T) {
	zero := 0.0
	f := panelAngle(t).WithOverrides(&zero, nil)
	col := f.Columns[0]
	bank := []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(5, 0)...)},
		{Name: "fault", Table: trace(t, col, constant(5, 1)...)},
	}
	e := newEngine(t, f, bank)

	seq, err := e.Run(context.Background(), trace(t, col, constant(5, 0)...))
	if err != nil {
		t.Fatalf("degenerate covariance must not fail the run: %v", err)
	}
	for i, label := range seq.Labels() {
		if label != NominalMode {
			t.Fatalf("step %d: expected Nominal, got %q", i, label)
		}
	}
	h, _ := e.Bank().Hypothesis(NominalMode)
	if h.DegenerateSteps() != 5 || !h.Outcome().Degenerate {
		t.Fatalf("expected fallback on every step, got %d", h.DegenerateSteps())
	}
}

func TestObserverSeesEveryStep(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	var labels []string
	var verdicts int
	e := newEngine(t, f, []Trajectory{
		{Name: NominalMode, Table: trace(t, col, constant(3, 0)...)},
		{Name: "fault", Table: trace(t, col, constant(3, 1)...)},
	}, WithObserver(ObserverFunc(func(r StepReport) {
		labels = append(labels, r.Label)
		verdicts += len(r.Verdicts)
		if r.Family != "panel_angle" {
			t.Errorf("unexpected family %q", r.Family)
		}
	})))

	seq, err := e.Run(context.Background(), trace(t, col, constant(3, 0)...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(labels, seq.Labels()) {
		t.Fatalf("observer labels %v differ from sequence %v", labels, seq.Labels())
	}
	if verdicts != 6 {
		t.Fatalf("expected one verdict per hypothesis per step, got %d", verdicts)
	}
}

func TestStepRejectsWrongDimension(t *testing.T) {
	f := panelAngle(t)
	e := newEngine(t, f, []Trajectory{{Name: NominalMode, Table: trace(t, f.Columns[0], 0)}})
	if _, err := e.Step(0, []float64{0, 0}); err == nil {
		t.Fatalf("expected dimension error")
	}
}

func TestRunMissingTruthValueIsUnknown(t *testing.T) {
	f := panelAngle(t)
	col := f.Columns[0]
	const n, gap = 12, 3
	e := newEngine(t, f, []Trajectory{{Name: NominalMode, Table: trace(t, col, constant(n, 0)...)}})

	values := constant(n, 0)
	values[gap] = math.NaN()
	seq, err := e.Run(context.Background(), trace(t, col, values...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, label := range seq.Labels() {
		want := NominalMode
		if i >= gap && i < gap+WindowSize {
			want = UnknownMode
		}
		if label != want {
			t.Fatalf("step %d: expected %q, got %q", i, want, label)
		}
	}
}
