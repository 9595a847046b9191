package identification

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// gateQuantile is the upper-tail point of the tabulated 95% gate constants
// (two-sided 95%, i.e. the 0.975 chi-squared quantile).
const gateQuantile = 0.975

var chiSquared95Table = map[int]float64{
	1: 5.024,
	2: 7.378,
	3: 9.348,
	4: 11.143,
	8: 17.535,
}

// ChiSquared95 returns the gate constant for dim degrees of freedom: the
// tabulated value where one exists, the chi-squared inverse CDF otherwise.
func ChiSquared95(dim int) float64 {
	if v, ok := chiSquared95Table[dim]; ok {
		return v
	}
	return distuv.ChiSquared{K: float64(dim)}.Quantile(gateQuantile)
}

// GateThreshold returns sqrt(chi95(dim) / windowSize).
func GateThreshold(dim, windowSize int) float64 {
	return math.Sqrt(ChiSquared95(dim) / float64(windowSize))
}

// Normalization selects how gate distances are scaled before thresholding.
type Normalization string

const (
	// NormalizationNone compares raw Mahalanobis distances.
	NormalizationNone Normalization = "none"
	// NormalizationRoleWeighted divides the Nominal distance by 0.9 and every
	// fault distance by 0.1. Kept as an experimental alternative; it changes
	// arbitration outcomes materially.
	NormalizationRoleWeighted Normalization = "role_weighted"
)

const (
	nominalRoleWeight = 0.9
	faultRoleWeight   = 0.1
)

// ParseNormalization accepts "", "none" and "role_weighted".
func ParseNormalization(raw string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(raw))) {
	case "", NormalizationNone:
		return NormalizationNone, nil
	case NormalizationRoleWeighted:
		return NormalizationRoleWeighted, nil
	default:
		return "", fmt.Errorf("unsupported gate normalization %q (expected none|role_weighted)", raw)
	}
}

func (n Normalization) weight(hypothesis string) float64 {
	if n != NormalizationRoleWeighted {
		return 1
	}
	if hypothesis == NominalMode {
		return nominalRoleWeight
	}
	return faultRoleWeight
}

// Outcome is the per-step gate result of one hypothesis.
type Outcome struct {
	Consistent bool
	Distance   float64
	// Degenerate is set when the covariance could not be inverted and the
	// diagonal approximation was used.
	Degenerate bool
}

// ConfidenceGate tests whether the mean of a residual window is consistent with
// zero-mean noise of the estimated covariance.
type ConfidenceGate struct {
	threshold     float64
	normalization Normalization
}

// NewConfidenceGate derives the threshold once from the dimension.
func NewConfidenceGate(dim int, normalization Normalization) ConfidenceGate {
	return ConfidenceGate{
		threshold:     GateThreshold(dim, WindowSize),
		normalization: normalization,
	}
}

// Threshold returns the distance threshold.
func (g ConfidenceGate) Threshold() float64 {
	return g.threshold
}

// Evaluate computes the Mahalanobis distance of mean from the origin.
func (g ConfidenceGate) Evaluate(hypothesis string, mean []float64, cov *mat.SymDense) Outcome {
	dist, degenerate := mahalanobis(mean, cov)
	dist /= g.normalization.weight(hypothesis)
	return Outcome{
		Consistent: dist <= g.threshold,
		Distance:   dist,
		Degenerate: degenerate,
	}
}

// mahalanobis returns sqrt(mᵀ·S⁻¹·m). When S is not positive definite the
// diagonal inverse is used instead; a zero-variance component then contributes
// nothing if its residual is exactly zero and +Inf otherwise.
func mahalanobis(mean []float64, cov *mat.SymDense) (float64, bool) {
	m := mat.NewVecDense(len(mean), append([]float64(nil), mean...))

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, m); err == nil {
			d2 := mat.Dot(m, &x)
			if d2 < 0 {
				d2 = 0
			}
			return math.Sqrt(d2), false
		}
	}

	d2 := 0.0
	for i, v := range mean {
		variance := cov.At(i, i)
		switch {
		case v == 0:
		case variance <= 0:
			return math.Inf(1), true
		default:
			d2 += v * v / variance
		}
	}
	return math.Sqrt(d2), true
}
