package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
)

// Recorder collects identification metrics. It is an identification.Observer
// and is safe for concurrent use by engines of different families.
type Recorder struct {
	registry *prometheus.Registry

	steps       *prometheus.CounterVec
	labels      *prometheus.CounterVec
	consistent  *prometheus.CounterVec
	degenerate  *prometheus.CounterVec
	distance    *prometheus.HistogramVec
	hypotheses  *prometheus.GaugeVec
	runDuration *prometheus.GaugeVec
	runErrors   *prometheus.CounterVec
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbfid_steps_total",
			Help: "Truth timestamps processed by family.",
		}, []string{"family"}),
		labels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbfid_labels_total",
			Help: "Emitted mode labels by family and label.",
		}, []string{"family", "label"}),
		consistent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbfid_consistent_verdicts_total",
			Help: "Hypothesis gate evaluations that passed.",
		}, []string{"family"}),
		degenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbfid_degenerate_covariance_total",
			Help: "Gate evaluations that fell back to the diagonal covariance.",
		}, []string{"family"}),
		distance: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mbfid_gate_distance",
			Help:    "Finite Mahalanobis distances of window-mean residuals.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 5, 10, 100},
		}, []string{"family"}),
		hypotheses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mbfid_hypotheses",
			Help: "Hypothesis bank size by family.",
		}, []string{"family"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mbfid_run_duration_seconds",
			Help: "Wall time of the last identification run by family.",
		}, []string{"family"}),
		runErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbfid_run_errors_total",
			Help: "Aborted identification runs by family.",
		}, []string{"family"}),
	}

	registry.MustRegister(
		r.steps,
		r.labels,
		r.consistent,
		r.degenerate,
		r.distance,
		r.hypotheses,
		r.runDuration,
		r.runErrors,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStep records one processed truth timestamp.
func (r *Recorder) ObserveStep(report identification.StepReport) {
	r.steps.WithLabelValues(report.Family).Inc()
	r.labels.WithLabelValues(report.Family, report.Label).Inc()
	for _, v := range report.Verdicts {
		if v.Consistent {
			r.consistent.WithLabelValues(report.Family).Inc()
		}
		if v.Degenerate {
			r.degenerate.WithLabelValues(report.Family).Inc()
		}
		if !math.IsInf(v.Distance, 0) && !math.IsNaN(v.Distance) {
			r.distance.WithLabelValues(report.Family).Observe(v.Distance)
		}
	}
}

// SetHypotheses records the bank size of a family.
func (r *Recorder) SetHypotheses(family string, n int) {
	r.hypotheses.WithLabelValues(family).Set(float64(n))
}

// ObserveRun records the outcome of one family run.
func (r *Recorder) ObserveRun(family string, elapsed time.Duration, err error) {
	r.runDuration.WithLabelValues(family).Set(elapsed.Seconds())
	if err != nil {
		r.runErrors.WithLabelValues(family).Inc()
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
