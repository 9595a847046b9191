package identification

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NoiseModel holds the static matrices of the residual covariance model
// S = C·Px·Cᵀ + R.
type NoiseModel struct {
	C  *mat.Dense // observation matrix
	Px *mat.Dense // process covariance
	R  *mat.Dense // measurement noise covariance
}

// NewNoiseModel builds the diagonal model used by every fault family: C = I,
// Px = processScale·I and R = noiseScale·I.
func NewNoiseModel(dim int, noiseScale, processScale float64) NoiseModel {
	return NoiseModel{
		C:  scaledIdentity(dim, 1),
		Px: scaledIdentity(dim, processScale),
		R:  scaledIdentity(dim, noiseScale),
	}
}

func scaledIdentity(dim int, scale float64) *mat.Dense {
	m := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		m.Set(i, i, scale)
	}
	return m
}

// Validate checks the matrix shapes against the measurement dimension.
func (m NoiseModel) Validate(dim int) error {
	check := func(name string, x *mat.Dense) error {
		if x == nil {
			return fmt.Errorf("%s is nil", name)
		}
		if r, c := x.Dims(); r != dim || c != dim {
			return fmt.Errorf("%s is %dx%d, want %dx%d", name, r, c, dim, dim)
		}
		return nil
	}
	if err := check("C", m.C); err != nil {
		return err
	}
	if err := check("Px", m.Px); err != nil {
		return err
	}
	return check("R", m.R)
}

// UncertaintyEstimator produces the residual covariance of one hypothesis.
// The process model is static today, so every estimate is identical; it is
// still evaluated each step so a recursive process model can replace it.
type UncertaintyEstimator struct {
	model NoiseModel
	dim   int
}

// NewUncertaintyEstimator validates the model and returns an estimator.
func NewUncertaintyEstimator(dim int, model NoiseModel) (*UncertaintyEstimator, error) {
	if err := model.Validate(dim); err != nil {
		return nil, configErrorf("noise model: %v", err)
	}
	return &UncertaintyEstimator{model: model, dim: dim}, nil
}

// Estimate returns C·Px·Cᵀ + R as a symmetric matrix.
func (e *UncertaintyEstimator) Estimate() *mat.SymDense {
	var cp, s mat.Dense
	cp.Mul(e.model.C, e.model.Px)
	s.Mul(&cp, e.model.C.T())
	s.Add(&s, e.model.R)

	sym := mat.NewSymDense(e.dim, nil)
	for i := 0; i < e.dim; i++ {
		for j := i; j < e.dim; j++ {
			sym.SetSym(i, j, (s.At(i, j)+s.At(j, i))/2)
		}
	}
	return sym
}
