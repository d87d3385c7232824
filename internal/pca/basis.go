package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the basis shape
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidBasis is returned when a basis cannot be constructed from its parts
	ErrInvalidBasis = errors.New("invalid PCA basis")
)

// Basis is a fixed linear basis of C components over a K-dimensional output space.
// It is immutable once constructed.
type Basis struct {
	mean              []float64
	components        *mat.Dense // C x K
	explainedVariance []float64
	whiten            bool
}

// NewBasis builds a basis from a mean vector of length K and a C x K component matrix.
// explainedVariance is only required when whiten is set.
func NewBasis(mean []float64, components [][]float64, explainedVariance []float64, whiten bool) (*Basis, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("%w: empty mean vector", ErrInvalidBasis)
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidBasis)
	}

	k := len(mean)
	c := len(components)
	data := make([]float64, 0, c*k)
	for i, row := range components {
		if len(row) != k {
			return nil, fmt.Errorf("%w: component %d has length %d, mean has length %d",
				ErrInvalidBasis, i, len(row), k)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: component %d has non-finite value at %d", ErrInvalidBasis, i, j)
			}
		}
		data = append(data, row...)
	}
	for j, v := range mean {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: mean has non-finite value at %d", ErrInvalidBasis, j)
		}
	}

	var variance []float64
	if whiten {
		if len(explainedVariance) != c {
			return nil, fmt.Errorf("%w: whitening needs %d explained variances, got %d",
				ErrInvalidBasis, c, len(explainedVariance))
		}
		for i, v := range explainedVariance {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: explained variance %d is %v", ErrInvalidBasis, i, v)
			}
		}
	}
	if len(explainedVariance) > 0 {
		variance = append([]float64(nil), explainedVariance...)
	}

	return &Basis{
		mean:              append([]float64(nil), mean...),
		components:        mat.NewDense(c, k, data),
		explainedVariance: variance,
		whiten:            whiten,
	}, nil
}

// NumComponents returns C
func (b *Basis) NumComponents() int {
	r, _ := b.components.Dims()
	return r
}

// Dim returns K, the output dimension
func (b *Basis) Dim() int {
	return len(b.mean)
}

// Whiten reports whether coefficients are expressed in whitened units
func (b *Basis) Whiten() bool {
	return b.whiten
}

// Mean returns a copy of the mean vector
func (b *Basis) Mean() []float64 {
	return append([]float64(nil), b.mean...)
}

// Component returns a copy of component i
func (b *Basis) Component(i int) []float64 {
	return mat.Row(nil, i, b.components)
}

// ExplainedVariance returns a copy of the per-component explained variance, if known
func (b *Basis) ExplainedVariance() []float64 {
	return append([]float64(nil), b.explainedVariance...)
}

// InverseTransform reconstructs a K-length vector from C coefficients:
// mean + coeffs . components
func (b *Basis) InverseTransform(coeffs []float64) ([]float64, error) {
	c := b.NumComponents()
	if len(coeffs) != c {
		return nil, fmt.Errorf("%w: got %d coefficients, basis has %d components",
			ErrDimensionMismatch, len(coeffs), c)
	}

	scaled := append([]float64(nil), coeffs...)
	if b.whiten {
		for i := range scaled {
			scaled[i] *= math.Sqrt(b.explainedVariance[i])
		}
	}

	var out mat.VecDense
	out.MulVec(b.components.T(), mat.NewVecDense(c, scaled))
	out.AddVec(&out, mat.NewVecDense(len(b.mean), b.Mean()))

	return out.RawVector().Data, nil
}

// Transform projects a K-length vector onto the basis
func (b *Basis) Transform(x []float64) ([]float64, error) {
	if len(x) != len(b.mean) {
		return nil, fmt.Errorf("%w: got vector of length %d, basis has dimension %d",
			ErrDimensionMismatch, len(x), len(b.mean))
	}

	centered := make([]float64, len(x))
	for i, v := range x {
		centered[i] = v - b.mean[i]
	}

	var out mat.VecDense
	out.MulVec(b.components, mat.NewVecDense(len(centered), centered))
	result := out.RawVector().Data
	if b.whiten {
		for i := range result {
			if sd := math.Sqrt(b.explainedVariance[i]); sd > 0 {
				result[i] /= sd
			}
		}
	}
	return result, nil
}

// Residual returns the RMS reconstruction error of the samples after a
// projection round trip through the basis.
func (b *Basis) Residual(samples [][]float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("empty sample set")
	}

	var sum float64
	var n int
	for i, s := range samples {
		coeffs, err := b.Transform(s)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		rec, err := b.InverseTransform(coeffs)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		for j := range s {
			d := s[j] - rec[j]
			sum += d * d
			n++
		}
	}
	return math.Sqrt(sum / float64(n)), nil
}
