package attribution

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

const (
	deploymentAngleColumn = "Panel Angle [rad]"
	deploymentEarliestNS  = 305_000_000_000
	deploymentSettleTol   = 0.001
)

// MatrixKey represents one actual/predicted pair in confusion matrix output.
type MatrixKey struct {
	Actual    string
	Predicted string
}

// Evaluate scores every recognised fault event of one example against its
// result column. truth may be nil; deployment faults then use the logged time.
func Evaluate(exampleID string, table *results.Table, events []FaultEvent, truth *telemetry.Table, log logrus.FieldLogger) []schema.EvaluationReport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reports := make([]schema.EvaluationReport, 0, len(events))
	for _, event := range events {
		exp, ok := MapFaultEvent(event)
		if !ok {
			log.WithFields(logrus.Fields{"example": exampleID, "event": event.Name}).Warn("fault event not scored")
			continue
		}
		seq, ok := table.Sequence(exp.Key)
		if !ok {
			log.WithFields(logrus.Fields{"example": exampleID, "key": exp.Key}).Warn("no result column for fault event")
			continue
		}

		faultTime := event.TimeNS()
		if exp.Settles && truth != nil {
			settled, err := DeploymentSettleTime(truth)
			if err != nil {
				log.WithError(err).WithField("example", exampleID).Warn("using logged deployment fault time")
			} else {
				faultTime = settled
			}
		}

		id := IdentificationStats(seq, faultTime, exp.Match)
		reports = append(reports, schema.EvaluationReport{
			ExampleID:      exampleID,
			Key:            exp.Key,
			TrueFault:      exp.TrueFault,
			FaultTimeNS:    faultTime,
			Detection:      DetectionStats(seq, faultTime),
			Identification: id,
			Correct:        exp.Match(id.Dominant),
		})
	}
	return reports
}

// DeploymentSettleTime returns the first timestamp after the deployment window
// at which the truth panel angle changes by less than the settle tolerance.
func DeploymentSettleTime(truth *telemetry.Table) (int64, error) {
	if !truth.HasColumn(deploymentAngleColumn) {
		return 0, fmt.Errorf("truth trace has no %q column", deploymentAngleColumn)
	}
	last := 0.0
	for i := 0; i < truth.Len(); i++ {
		row := truth.Row(i)
		v, err := row.Value(deploymentAngleColumn)
		if err != nil {
			return 0, err
		}
		if math.Abs(v-last) < deploymentSettleTol && row.Time() > deploymentEarliestNS {
			return row.Time(), nil
		}
		last = v
	}
	return 0, fmt.Errorf("panel angle never settles after %d ns", int64(deploymentEarliestNS))
}

// BuildConfusionMatrix counts true fault against dominant identified label.
func BuildConfusionMatrix(reports []schema.EvaluationReport) map[MatrixKey]int {
	matrix := make(map[MatrixKey]int)
	for _, r := range reports {
		matrix[MatrixKey{Actual: r.TrueFault, Predicted: r.Identification.Dominant}]++
	}
	return matrix
}

// Accuracy returns the ratio of correctly identified faults in [0,1].
func Accuracy(reports []schema.EvaluationReport) float64 {
	if len(reports) == 0 {
		return 0
	}
	correct := 0
	for _, r := range reports {
		if r.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(reports))
}
