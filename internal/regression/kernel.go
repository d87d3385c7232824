package regression

import (
	"fmt"
	"math"
)

// Kernel is a covariance function evaluated between a query point and a training point.
// Kernels are stateless and safe for concurrent use.
type Kernel interface {
	Eval(a, b []float64) float64
}

// KernelSpec is the serialized form of a kernel tree, following the
// scikit-learn kernel vocabulary. Omitted constant_value and nu take the
// scikit-learn defaults.
type KernelSpec struct {
	Type          string      `json:"type"`
	ConstantValue *float64    `json:"constant_value,omitempty"`
	LengthScale   []float64   `json:"length_scale,omitempty"`
	Nu            *float64    `json:"nu,omitempty"`
	Alpha         float64     `json:"alpha,omitempty"`
	NoiseLevel    float64     `json:"noise_level,omitempty"`
	K1            *KernelSpec `json:"k1,omitempty"`
	K2            *KernelSpec `json:"k2,omitempty"`
}

// Defaults for omitted hyperparameters
const (
	DefaultConstantValue = 1.0
	DefaultMaternNu      = 1.5
)

// Kernel types
const (
	KernelConstant          = "constant"
	KernelRBF               = "rbf"
	KernelMatern            = "matern"
	KernelRationalQuadratic = "rational_quadratic"
	KernelWhite             = "white"
	KernelSum               = "sum"
	KernelProduct           = "product"
)

// NewKernel builds a kernel for inputs of the given dimension
func NewKernel(spec *KernelSpec, dim int) (Kernel, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: missing kernel", ErrInvalidSpec)
	}

	switch spec.Type {
	case KernelConstant:
		c := valueOr(spec.ConstantValue, DefaultConstantValue)
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: invalid constant_value %v", ErrInvalidSpec, c)
		}
		return constantKernel(c), nil

	case KernelRBF:
		ls, err := lengthScales(spec.LengthScale, dim)
		if err != nil {
			return nil, err
		}
		return rbfKernel{lengthScale: ls}, nil

	case KernelMatern:
		ls, err := lengthScales(spec.LengthScale, dim)
		if err != nil {
			return nil, err
		}
		nu := valueOr(spec.Nu, DefaultMaternNu)
		switch nu {
		case 0.5, 1.5, 2.5:
		default:
			return nil, fmt.Errorf("%w: unsupported matern nu %v", ErrInvalidSpec, nu)
		}
		return maternKernel{lengthScale: ls, nu: nu}, nil

	case KernelRationalQuadratic:
		ls, err := lengthScales(spec.LengthScale, dim)
		if err != nil {
			return nil, err
		}
		if spec.Alpha <= 0 {
			return nil, fmt.Errorf("%w: rational_quadratic alpha must be positive", ErrInvalidSpec)
		}
		return rationalQuadraticKernel{lengthScale: ls, alpha: spec.Alpha}, nil

	case KernelWhite:
		return whiteKernel{}, nil

	case KernelSum, KernelProduct:
		k1, err := NewKernel(spec.K1, dim)
		if err != nil {
			return nil, fmt.Errorf("%s.k1: %w", spec.Type, err)
		}
		k2, err := NewKernel(spec.K2, dim)
		if err != nil {
			return nil, fmt.Errorf("%s.k2: %w", spec.Type, err)
		}
		if spec.Type == KernelSum {
			return sumKernel{k1, k2}, nil
		}
		return productKernel{k1, k2}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kernel type %q", ErrInvalidSpec, spec.Type)
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func lengthScales(ls []float64, dim int) ([]float64, error) {
	if len(ls) != 1 && len(ls) != dim {
		return nil, fmt.Errorf("%w: length_scale must have 1 or %d entries, got %d",
			ErrInvalidSpec, dim, len(ls))
	}
	for i, l := range ls {
		if l <= 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("%w: length_scale[%d] = %v", ErrInvalidSpec, i, l)
		}
	}
	return append([]float64(nil), ls...), nil
}

// scaledSqDist returns sum(((a-b)/l)^2), broadcasting an isotropic length scale
func scaledSqDist(a, b, ls []float64) float64 {
	var d float64
	for i := range a {
		l := ls[0]
		if len(ls) > 1 {
			l = ls[i]
		}
		t := (a[i] - b[i]) / l
		d += t * t
	}
	return d
}

type constantKernel float64

func (k constantKernel) Eval(_, _ []float64) float64 { return float64(k) }

type rbfKernel struct {
	lengthScale []float64
}

func (k rbfKernel) Eval(a, b []float64) float64 {
	return math.Exp(-0.5 * scaledSqDist(a, b, k.lengthScale))
}

type maternKernel struct {
	lengthScale []float64
	nu          float64
}

func (k maternKernel) Eval(a, b []float64) float64 {
	d := math.Sqrt(scaledSqDist(a, b, k.lengthScale))
	switch k.nu {
	case 0.5:
		return math.Exp(-d)
	case 1.5:
		t := math.Sqrt(3) * d
		return (1 + t) * math.Exp(-t)
	default:
		t := math.Sqrt(5) * d
		return (1 + t + t*t/3) * math.Exp(-t)
	}
}

type rationalQuadraticKernel struct {
	lengthScale []float64
	alpha       float64
}

func (k rationalQuadraticKernel) Eval(a, b []float64) float64 {
	d := scaledSqDist(a, b, k.lengthScale)
	return math.Pow(1+d/(2*k.alpha), -k.alpha)
}

// whiteKernel only contributes on the training diagonal, which is never
// evaluated at prediction time.
type whiteKernel struct{}

func (whiteKernel) Eval(_, _ []float64) float64 { return 0 }

type sumKernel struct{ k1, k2 Kernel }

func (k sumKernel) Eval(a, b []float64) float64 { return k.k1.Eval(a, b) + k.k2.Eval(a, b) }

type productKernel struct{ k1, k2 Kernel }

func (k productKernel) Eval(a, b []float64) float64 { return k.k1.Eval(a, b) * k.k2.Eval(a, b) }
