package attribution

import (
	"math"
	"testing"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
)

func labels(ls ...string) identification.ModeSequence {
	seq := make(identification.ModeSequence, len(ls))
	for i, l := range ls {
		seq[i] = identification.ModeEntry{Time: int64(i), Label: l}
	}
	return seq
}

const (
	nom      = identification.NominalMode
	off      = "CSS[3] Is Off"
	stuckMax = "CSS[3] Stuck at Max Value"
)

func TestDetectionStats(t *testing.T) {
	seq := labels(nom, nom, stuckMax, nom, nom, nom, nom, off, nom, off)
	r := DetectionStats(seq, 5)

	if r.TN != 4 || r.FP != 1 || r.TP != 2 || r.FN != 3 {
		t.Fatalf("unexpected counts: %+v", r)
	}
	if math.Abs(r.TPR-0.4) > 1e-12 || math.Abs(r.FNR-0.6) > 1e-12 {
		t.Fatalf("unexpected positive rates: %+v", r)
	}
	if math.Abs(r.FPR-0.2) > 1e-12 || math.Abs(r.TNR-0.8) > 1e-12 {
		t.Fatalf("unexpected negative rates: %+v", r)
	}
	if r.Latency != 3 {
		t.Fatalf("expected latency 3, got %d", r.Latency)
	}
	if r.Dominant != nom {
		t.Fatalf("expected dominant Nominal, got %q", r.Dominant)
	}
}

func TestIdentificationStatsRequiresMatchingLabel(t *testing.T) {
	seq := labels(nom, nom, stuckMax, stuckMax, off, off, off)
	r := IdentificationStats(seq, 2, MatchAll("Off", "[3]"))

	if r.TN != 2 || r.FP != 0 {
		t.Fatalf("unexpected negatives: %+v", r)
	}
	if r.TP != 3 || r.FN != 2 || r.Latency != 2 {
		t.Fatalf("unexpected positives: %+v", r)
	}
	if r.Dominant != off {
		t.Fatalf("expected dominant %q, got %q", off, r.Dominant)
	}

	det := DetectionStats(seq, 2)
	if det.TP != 5 || det.Latency != 0 {
		t.Fatalf("any fault label counts as a detection: %+v", det)
	}
}

func TestStatsWithoutPositives(t *testing.T) {
	r := DetectionStats(labels(nom, nom), 100)
	if r.TPR != 0 || r.FNR != 0 || r.TNR != 1 {
		t.Fatalf("unexpected rates: %+v", r)
	}
	if r.Dominant != nom {
		t.Fatalf("expected Nominal dominant, got %q", r.Dominant)
	}
}

func TestDominantTieIsAlphabetical(t *testing.T) {
	r := DetectionStats(labels(off, stuckMax), 0)
	if r.Dominant != stuckMax {
		t.Fatalf("expected %q, got %q", stuckMax, r.Dominant)
	}
}

func TestMatchAll(t *testing.T) {
	m := MatchAll("RW", "[2]", "Stuck")
	if !m("RW[2] Is Stuck") {
		t.Fatalf("expected match")
	}
	if m("RW[1] Is Stuck") {
		t.Fatalf("unexpected match")
	}
	if !MatchAll()("anything") {
		t.Fatalf("empty matcher should accept every label")
	}
}
