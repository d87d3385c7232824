package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GPSpec is the serialized posterior of a fitted Gaussian process.
// Alpha is K(X, X)^-1 y computed at training time; YMean and YStd undo
// target normalization (YStd of 0 means the targets were not normalized).
type GPSpec struct {
	Kernel KernelSpec  `json:"kernel"`
	XTrain [][]float64 `json:"x_train"`
	Alpha  []float64   `json:"alpha"`
	YMean  float64     `json:"y_mean"`
	YStd   float64     `json:"y_std"`
}

// GaussianProcess evaluates the posterior mean of a fitted Gaussian process
type GaussianProcess struct {
	kernel Kernel
	xTrain *mat.Dense
	alpha  *mat.VecDense
	yMean  float64
	yStd   float64
}

// NewGaussianProcess builds a regressor for inputs of dimension dim
func NewGaussianProcess(spec GPSpec, dim int) (*GaussianProcess, error) {
	n := len(spec.XTrain)
	if n == 0 {
		return nil, fmt.Errorf("%w: no training points", ErrInvalidSpec)
	}
	if len(spec.Alpha) != n {
		return nil, fmt.Errorf("%w: %d alpha coefficients for %d training points",
			ErrInvalidSpec, len(spec.Alpha), n)
	}
	if spec.YStd < 0 {
		return nil, fmt.Errorf("%w: negative y_std %v", ErrInvalidSpec, spec.YStd)
	}

	data := make([]float64, 0, n*dim)
	for i, row := range spec.XTrain {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: training point %d has dimension %d, want %d",
				ErrInvalidSpec, i, len(row), dim)
		}
		data = append(data, row...)
	}

	kernel, err := NewKernel(&spec.Kernel, dim)
	if err != nil {
		return nil, err
	}

	yStd := spec.YStd
	if yStd == 0 {
		yStd = 1
	}

	return &GaussianProcess{
		kernel: kernel,
		xTrain: mat.NewDense(n, dim, data),
		alpha:  mat.NewVecDense(n, append([]float64(nil), spec.Alpha...)),
		yMean:  spec.YMean,
		yStd:   yStd,
	}, nil
}

// Dim returns the input dimension
func (g *GaussianProcess) Dim() int {
	_, c := g.xTrain.Dims()
	return c
}

// NumTrainingPoints returns the number of training points
func (g *GaussianProcess) NumTrainingPoints() int {
	r, _ := g.xTrain.Dims()
	return r
}

// Predict implements Regressor: y_mean + y_std * k(x, X) . alpha
func (g *GaussianProcess) Predict(x []float64) (float64, error) {
	n, dim := g.xTrain.Dims()
	if len(x) != dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), dim)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: input %d is %v", ErrNumerical, i, v)
		}
	}

	kStar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		kStar.SetVec(i, g.kernel.Eval(x, g.xTrain.RawRowView(i)))
	}

	y := g.yMean + g.yStd*mat.Dot(kStar, g.alpha)
	if err := checkFinite(y); err != nil {
		return 0, err
	}
	return y, nil
}
