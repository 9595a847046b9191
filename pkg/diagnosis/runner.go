package diagnosis

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/metrics"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/semconv"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/simdb"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

// Runner identifies every configured fault family over one truth trace.
type Runner struct {
	Families      []measurement.Family
	Normalization identification.Normalization
	Log           logrus.FieldLogger
	// Recorder is optional; when set it observes every step and run.
	Recorder *metrics.Recorder
	// Now stamps the summary; time.Now is used when nil.
	Now func() time.Time
}

// Result is the outcome of one Runner.Run.
type Result struct {
	RunID     string
	ExampleID string
	Table     *results.Table
	Summary   schema.RunSummary
}

type familyOutcome struct {
	skipped bool
	seq     identification.ModeSequence
	summary schema.FamilySummary
}

// ExampleID names a truth trace after the directory holding it.
func ExampleID(truthPath string) string {
	return filepath.Base(filepath.Dir(filepath.Clean(truthPath)))
}

// Run loads the simulation database and the truth trace and runs one engine
// per family concurrently. Families without hypotheses, or whose columns the
// truth lacks, are skipped with a warning. Any other family failure aborts
// the whole run.
func (r *Runner) Run(ctx context.Context, simDir, truthPath string) (*Result, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(r.Families) == 0 {
		return nil, fmt.Errorf("no fault families selected")
	}
	norm := r.Normalization
	if norm == "" {
		norm = identification.NormalizationNone
	}

	runID := uuid.NewString()
	exampleID := ExampleID(truthPath)
	log = log.WithFields(logrus.Fields{"run_id": runID, "example": exampleID})

	ctx, span := otel.Tracer(semconv.TracerName).Start(ctx, "diagnosis.run")
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.AttrExampleID, exampleID),
		attribute.String(semconv.AttrDatabaseDir, simDir),
	)
	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	db, err := simdb.Discover(simDir)
	if err != nil {
		return fail(fmt.Errorf("discover simulations: %w", err))
	}
	truth, err := telemetry.LoadCSV(truthPath)
	if err != nil {
		return fail(fmt.Errorf("load truth: %w", err))
	}
	span.SetAttributes(attribute.Int(semconv.AttrTruthRows, truth.Len()))
	log.WithFields(logrus.Fields{
		"simulations": len(db.Modes),
		"steps":       truth.Len(),
		"families":    len(r.Families),
	}).Info("diagnosis started")

	outcomes := make([]familyOutcome, len(r.Families))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, family := range r.Families {
		g.Go(func() error {
			out, err := r.runFamily(gctx, log, db, truth, family, norm)
			if err != nil {
				return fmt.Errorf("family %s: %w", family.Slug, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	table := results.TableFor(truth)
	summary := schema.RunSummary{
		RunID:       runID,
		GeneratedAt: now().UTC(),
		ExampleID:   exampleID,
		TruthPath:   truthPath,
		SimDir:      simDir,
		Steps:       truth.Len(),
		Families:    make([]schema.FamilySummary, 0, len(r.Families)),
	}
	for i, out := range outcomes {
		if out.skipped {
			summary.Skipped = append(summary.Skipped, r.Families[i].Slug)
			continue
		}
		if err := table.SetColumn(r.Families[i].Key, out.seq); err != nil {
			return fail(err)
		}
		summary.Families = append(summary.Families, out.summary)
	}
	span.SetAttributes(attribute.Int(semconv.AttrSkippedFamilies, len(summary.Skipped)))
	log.WithFields(logrus.Fields{
		"families": len(summary.Families),
		"skipped":  len(summary.Skipped),
	}).Info("diagnosis complete")

	return &Result{RunID: runID, ExampleID: exampleID, Table: table, Summary: summary}, nil
}

func (r *Runner) runFamily(ctx context.Context, log logrus.FieldLogger, db *simdb.Database, truth *telemetry.Table, family measurement.Family, norm identification.Normalization) (familyOutcome, error) {
	flog := log.WithField("family", family.Slug)
	if missing := family.MissingColumns(truth); len(missing) > 0 {
		flog.WithField("missing", missing).Warn("truth lacks family columns, skipping")
		return familyOutcome{skipped: true}, nil
	}
	trajectories := db.Trajectories(family, flog)
	if len(trajectories) == 0 {
		flog.Warn("no simulations for family, skipping")
		return familyOutcome{skipped: true}, nil
	}

	opts := []identification.Option{
		identification.WithLogger(log),
		identification.WithNormalization(norm),
	}
	if r.Recorder != nil {
		opts = append(opts, identification.WithObserver(r.Recorder))
	}
	engine, err := identification.NewEngine(ctx, family, trajectories, opts...)
	if err != nil {
		return familyOutcome{}, err
	}
	if r.Recorder != nil {
		r.Recorder.SetHypotheses(family.Slug, engine.Bank().Len())
	}

	start := time.Now()
	seq, err := engine.Run(ctx, truth)
	if r.Recorder != nil {
		r.Recorder.ObserveRun(family.Slug, time.Since(start), err)
	}
	if err != nil {
		return familyOutcome{}, err
	}
	return familyOutcome{seq: seq, summary: summarize(engine, norm, seq)}, nil
}

func summarize(engine *identification.Engine, norm identification.Normalization, seq identification.ModeSequence) schema.FamilySummary {
	family := engine.Family()
	s := schema.FamilySummary{
		Key:           family.Key,
		Family:        family.Slug,
		Dimension:     family.Dimension(),
		Threshold:     engine.Threshold(),
		Normalization: string(norm),
		Hypotheses:    engine.Bank().Names(),
		LabelCounts:   make(map[string]int),
		Transitions:   seq.Transitions(),
	}
	for _, entry := range seq {
		s.LabelCounts[entry.Label]++
		if entry.Label == identification.UnknownMode {
			s.UnknownSteps++
		}
	}
	for _, name := range s.Hypotheses {
		if h, ok := engine.Bank().Hypothesis(name); ok {
			s.DegenerateSteps += h.DegenerateSteps()
		}
	}
	if len(seq) > 0 {
		s.FinalLabel = seq[len(seq)-1].Label
	}
	return s
}
