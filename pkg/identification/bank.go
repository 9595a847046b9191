package identification

import (
	"context"
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// Trajectory is one simulated trajectory and the hypothesis it represents.
type Trajectory struct {
	Name  string
	Table *telemetry.Table
}

// Hypothesis owns everything the engine tracks for one candidate mode.
type Hypothesis struct {
	name       string
	reference  *ReferenceIndex
	estimator  *UncertaintyEstimator
	window     *InnovationWindow
	covariance *mat.SymDense
	outcome    Outcome

	innovation []float64
	mean       []float64
	degenerate int
}

// Name returns the hypothesis label.
func (h *Hypothesis) Name() string {
	return h.name
}

// Outcome returns the most recent gate outcome.
func (h *Hypothesis) Outcome() Outcome {
	return h.outcome
}

// Covariance returns the most recent residual covariance estimate.
func (h *Hypothesis) Covariance() *mat.SymDense {
	return h.covariance
}

// Innovations returns the current residual window, oldest first.
func (h *Hypothesis) Innovations() [][]float64 {
	return h.window.Snapshot()
}

// DegenerateSteps counts steps that used the diagonal covariance fallback.
func (h *Hypothesis) DegenerateSteps() int {
	return h.degenerate
}

func (h *Hypothesis) reset() {
	h.window.Reset()
	h.covariance = nil
	h.outcome = Outcome{}
	h.degenerate = 0
}

// update runs innovation tracking, covariance estimation and gating for one step.
func (h *Hypothesis) update(timeNS int64, truth []float64, gate ConfidenceGate) error {
	expected, ok := h.reference.Lookup(timeNS)
	if !ok {
		return &MissingReferenceError{Hypothesis: h.name, Time: timeNS}
	}
	for i := range truth {
		h.innovation[i] = truth[i] - expected[i]
	}
	h.window.Push(h.innovation)
	h.covariance = h.estimator.Estimate()
	h.mean = h.window.Mean(h.mean)
	h.outcome = gate.Evaluate(h.name, h.mean, h.covariance)
	if h.outcome.Degenerate {
		h.degenerate++
	}
	return nil
}

// Bank is the ordered hypothesis collection of one run. "Nominal" comes first,
// the remaining hypotheses keep the order they were supplied in; this order is
// the arbiter's tie-break order.
type Bank struct {
	family     measurement.Family
	hypotheses []*Hypothesis
}

// NewBank builds one hypothesis per trajectory. Reference indexes are built
// concurrently; the resulting order does not depend on scheduling.
func NewBank(ctx context.Context, family measurement.Family, trajectories []Trajectory) (*Bank, error) {
	if err := family.Validate(); err != nil {
		return nil, configErrorf("%v", err)
	}
	if len(trajectories) == 0 {
		return nil, configErrorf("%s: no hypotheses supplied", family.Name)
	}

	ordered := make([]Trajectory, 0, len(trajectories))
	seen := make(map[string]bool, len(trajectories))
	for _, tr := range trajectories {
		if tr.Name == "" {
			return nil, configErrorf("%s: hypothesis with empty name", family.Name)
		}
		if seen[tr.Name] {
			return nil, configErrorf("%s: duplicate hypothesis %q", family.Name, tr.Name)
		}
		seen[tr.Name] = true
		if tr.Name == NominalMode {
			ordered = append([]Trajectory{tr}, ordered...)
		} else {
			ordered = append(ordered, tr)
		}
	}

	dim := family.Dimension()
	model := NewNoiseModel(dim, family.NoiseScale, family.ProcessScale)

	hypotheses := make([]*Hypothesis, len(ordered))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tr := range ordered {
		g.Go(func() error {
			ref, err := NewReferenceIndex(family, tr.Table)
			if err != nil {
				return fmt.Errorf("hypothesis %q: %w", tr.Name, err)
			}
			estimator, err := NewUncertaintyEstimator(dim, model)
			if err != nil {
				return err
			}
			hypotheses[i] = &Hypothesis{
				name:       tr.Name,
				reference:  ref,
				estimator:  estimator,
				window:     NewInnovationWindow(WindowSize, dim),
				innovation: make([]float64, dim),
				mean:       make([]float64, dim),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Bank{family: family, hypotheses: hypotheses}, nil
}

// Len returns the number of hypotheses.
func (b *Bank) Len() int {
	return len(b.hypotheses)
}

// Names returns the hypothesis names in bank order.
func (b *Bank) Names() []string {
	out := make([]string, len(b.hypotheses))
	for i, h := range b.hypotheses {
		out[i] = h.name
	}
	return out
}

// Hypothesis returns the named hypothesis.
func (b *Bank) Hypothesis(name string) (*Hypothesis, bool) {
	for _, h := range b.hypotheses {
		if h.name == name {
			return h, true
		}
	}
	return nil, false
}

func (b *Bank) reset() {
	for _, h := range b.hypotheses {
		h.reset()
	}
}
