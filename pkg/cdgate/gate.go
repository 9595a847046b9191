package cdgate

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/attribution"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// Gate metric names.
const (
	MetricAccuracy          = "accuracy"
	MetricIdentificationTPR = "identification_tpr_min"
	MetricDetectionFPR      = "detection_fpr_max"
	MetricLatencySteps      = "latency_steps_max"
	MetricUnknownRatio      = "unknown_ratio"
	MetricDegenerateRatio   = "degenerate_ratio"
	MetricRunErrors         = "run_errors"
)

// Violation describes a single gate metric breach.
type Violation struct {
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
	Actual    float64 `json:"actual"`
}

// Result is the output of a gate evaluation.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
	Timestamp  time.Time   `json:"timestamp"`
	Error      string      `json:"error,omitempty"`
}

// ReportThresholds are the pass criteria over evaluation reports. Nil fields
// are not checked.
type ReportThresholds struct {
	MinAccuracy          *float64
	MinIdentificationTPR *float64
	MaxDetectionFPR      *float64
	MaxLatencySteps      *int
}

type reportCheck struct {
	metric    string
	threshold *float64
	actual    float64
	violates  func(actual, threshold float64) bool
}

// EvaluateReports gates a batch of evaluation reports. An empty batch fails
// whenever any threshold is set.
func EvaluateReports(reports []schema.EvaluationReport, thresholds ReportThresholds) Result {
	result := Result{
		Pass:      true,
		Timestamp: time.Now().UTC(),
	}
	if len(reports) == 0 {
		if thresholds != (ReportThresholds{}) {
			result.Pass = false
			result.Error = "no evaluation reports to gate"
		}
		return result
	}

	minTPR, maxFPR, maxLatency := 1.0, 0.0, 0
	for _, r := range reports {
		if r.Identification.TPR < minTPR {
			minTPR = r.Identification.TPR
		}
		if r.Detection.FPR > maxFPR {
			maxFPR = r.Detection.FPR
		}
		if r.Detection.Latency > maxLatency {
			maxLatency = r.Detection.Latency
		}
	}

	below := func(a, t float64) bool { return a < t }
	above := func(a, t float64) bool { return a > t }
	checks := []reportCheck{
		{MetricAccuracy, thresholds.MinAccuracy, attribution.Accuracy(reports), below},
		{MetricIdentificationTPR, thresholds.MinIdentificationTPR, minTPR, below},
		{MetricDetectionFPR, thresholds.MaxDetectionFPR, maxFPR, above},
	}
	if thresholds.MaxLatencySteps != nil {
		limit := float64(*thresholds.MaxLatencySteps)
		checks = append(checks, reportCheck{MetricLatencySteps, &limit, float64(maxLatency), above})
	}

	for _, check := range checks {
		if check.threshold == nil {
			continue
		}
		if check.violates(check.actual, *check.threshold) {
			result.Pass = false
			result.Violations = append(result.Violations, Violation{
				Metric:    check.metric,
				Threshold: *check.threshold,
				Actual:    check.actual,
			})
		}
	}
	return result
}

// Summary renders the violations of a failed gate on one line.
func (r Result) Summary() string {
	if r.Error != "" {
		return r.Error
	}
	out := ""
	for i, v := range r.Violations {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s=%.4g (threshold %.4g)", v.Metric, v.Actual, v.Threshold)
	}
	return out
}
