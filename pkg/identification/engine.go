package identification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/semconv"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// ModeEntry is the label emitted for one truth timestamp.
type ModeEntry struct {
	Time  int64
	Label string
}

// ModeSequence is the ordered result of one run, one entry per truth row.
type ModeSequence []ModeEntry

// Labels returns the labels without timestamps.
func (s ModeSequence) Labels() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Label
	}
	return out
}

// Transitions counts label changes between consecutive entries.
func (s ModeSequence) Transitions() int {
	n := 0
	for i := 1; i < len(s); i++ {
		if s[i].Label != s[i-1].Label {
			n++
		}
	}
	return n
}

// StepReport describes one processed truth timestamp.
type StepReport struct {
	Family   string
	Time     int64
	Verdicts []Verdict
	Label    string
}

// Observer receives every step of a run. Implementations must not retain
// the Verdicts slice.
type Observer interface {
	ObserveStep(StepReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepReport)

func (f ObserverFunc) ObserveStep(r StepReport) { f(r) }

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a step observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithLogger sets the logger; the standard logrus logger is used otherwise.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithNormalization selects the distance normalization of the confidence gate.
func WithNormalization(n Normalization) Option {
	return func(e *Engine) {
		e.normalization = n
	}
}

// Engine identifies the operating mode of one measurement family over a truth
// trace. It is not safe for concurrent use; run one engine per family.
type Engine struct {
	family        measurement.Family
	bank          *Bank
	gate          ConfidenceGate
	arbiter       ModeArbiter
	normalization Normalization
	observers     []Observer
	log           logrus.FieldLogger

	truth    []float64
	verdicts []Verdict
}

// NewEngine validates the family and builds the hypothesis bank. All setup
// failures wrap ErrConfiguration.
func NewEngine(ctx context.Context, family measurement.Family, trajectories []Trajectory, opts ...Option) (*Engine, error) {
	e := &Engine{
		family:        family,
		normalization: NormalizationNone,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseNormalization(string(e.normalization)); err != nil {
		return nil, configErrorf("%v", err)
	}

	bank, err := NewBank(ctx, family, trajectories)
	if err != nil {
		return nil, err
	}
	e.bank = bank
	e.gate = NewConfidenceGate(family.Dimension(), e.normalization)
	e.truth = make([]float64, family.Dimension())
	e.verdicts = make([]Verdict, bank.Len())
	e.log = e.log.WithField("family", family.Slug)
	e.log.WithFields(logrus.Fields{
		"hypotheses": bank.Len(),
		"dimension":  family.Dimension(),
		"threshold":  e.gate.Threshold(),
	}).Debug("identification engine ready")
	return e, nil
}

// Family returns the measurement family the engine runs on.
func (e *Engine) Family() measurement.Family {
	return e.family
}

// Threshold returns the gate threshold derived from the family dimension.
func (e *Engine) Threshold() float64 {
	return e.gate.Threshold()
}

// Bank exposes the hypothesis bank for inspection.
func (e *Engine) Bank() *Bank {
	return e.bank
}

// Step processes one truth vector and returns the emitted label.
func (e *Engine) Step(timeNS int64, truth []float64) (string, error) {
	if len(truth) != e.family.Dimension() {
		return "", fmt.Errorf("truth vector has %d components, %s expects %d", len(truth), e.family.Name, e.family.Dimension())
	}
	for i, h := range e.bank.hypotheses {
		if err := h.update(timeNS, truth, e.gate); err != nil {
			return "", err
		}
		e.verdicts[i] = Verdict{Hypothesis: h.name, Outcome: h.outcome}
	}
	label := e.arbiter.Decide(e.verdicts)
	if len(e.observers) > 0 {
		report := StepReport{Family: e.family.Slug, Time: timeNS, Verdicts: e.verdicts, Label: label}
		for _, o := range e.observers {
			o.ObserveStep(report)
		}
	}
	return label, nil
}

// Run resets all per-run state and labels every row of truth in order. On
// any error the partial result is discarded.
func (e *Engine) Run(ctx context.Context, truth *telemetry.Table) (ModeSequence, error) {
	_, span := otel.Tracer(semconv.TracerName).Start(ctx, "identification.run")
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.AttrFamily, e.family.Slug),
		attribute.Int(semconv.AttrFamilyDimension, e.family.Dimension()),
		attribute.Int(semconv.AttrHypothesisCount, e.bank.Len()),
		attribute.Float64(semconv.AttrGateThreshold, e.gate.Threshold()),
		attribute.String(semconv.AttrGateNormalize, string(e.normalization)),
	)

	seq, err := e.run(truth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.WithError(err).Warn("identification run aborted")
		return nil, err
	}

	unknown, degenerate := 0, 0
	for _, entry := range seq {
		if entry.Label == UnknownMode {
			unknown++
		}
	}
	for _, h := range e.bank.hypotheses {
		degenerate += h.degenerate
	}
	span.SetAttributes(
		attribute.Int(semconv.AttrTruthRows, len(seq)),
		attribute.Int(semconv.AttrUnknownSteps, unknown),
		attribute.Int(semconv.AttrDegenerateSteps, degenerate),
		attribute.Int(semconv.AttrModeTransitions, seq.Transitions()),
		attribute.String(semconv.AttrFinalLabel, seq[len(seq)-1].Label),
	)
	fields := logrus.Fields{
		"steps":       len(seq),
		"unknown":     unknown,
		"transitions": seq.Transitions(),
		"final":       seq[len(seq)-1].Label,
	}
	if degenerate > 0 {
		fields["degenerate"] = degenerate
		e.log.WithFields(fields).Warn("covariance not positive definite, diagonal fallback used")
	} else {
		e.log.WithFields(fields).Info("identification run complete")
	}
	return seq, nil
}

func (e *Engine) run(truth *telemetry.Table) (ModeSequence, error) {
	if truth == nil || truth.Len() == 0 {
		return nil, ErrEmptyTrace
	}
	if missing := e.family.MissingColumns(truth); len(missing) > 0 {
		return nil, configErrorf("truth trace is missing %s columns %q", e.family.Name, missing)
	}
	if idx := truth.Monotonic(); idx >= 0 {
		return nil, fmt.Errorf("%w: row %d at %d ns follows %d ns", ErrUnorderedTrace, idx, truth.Time(idx), truth.Time(idx-1))
	}

	e.bank.reset()
	e.arbiter.Reset()

	seq := make(ModeSequence, 0, truth.Len())
	for i := 0; i < truth.Len(); i++ {
		row := truth.Row(i)
		vec, err := e.family.Project(row)
		if err != nil {
			return nil, err
		}
		copy(e.truth, vec)
		label, err := e.Step(row.Time(), e.truth)
		if err != nil {
			return nil, err
		}
		seq = append(seq, ModeEntry{Time: row.Time(), Label: label})
	}
	return seq, nil
}
