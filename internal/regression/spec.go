package regression

import "fmt"

// Regressor kinds
const (
	KindGP   = "gp"
	KindONNX = "onnx"
)

// Spec is the serialized form of one ensemble member
type Spec struct {
	Kind string    `json:"kind,omitempty"`
	ONNX *ONNXSpec `json:"onnx,omitempty"`
	GPSpec
}

// BuildOptions holds what is needed to turn specs into live regressors
type BuildOptions struct {
	Dim             int    // input dimension
	BaseDir         string // directory relative model paths are resolved against
	ONNXLibraryPath string // shared library for ONNX models
}

// Build creates the regressor described by spec
func Build(spec Spec, opts BuildOptions) (Regressor, error) {
	switch spec.Kind {
	case "", KindGP:
		return NewGaussianProcess(spec.GPSpec, opts.Dim)
	case KindONNX:
		if spec.ONNX == nil {
			return nil, fmt.Errorf("%w: onnx regressor without onnx section", ErrInvalidSpec)
		}
		if err := EnsureRuntime(opts.ONNXLibraryPath); err != nil {
			return nil, err
		}
		return NewONNXRegressor(*spec.ONNX, opts.Dim, opts.BaseDir)
	default:
		return nil, fmt.Errorf("%w: unknown regressor kind %q", ErrInvalidSpec, spec.Kind)
	}
}

// Kind returns a short label for a regressor, used in logs and inspection output
func Kind(r Regressor) string {
	switch r.(type) {
	case *GaussianProcess:
		return KindGP
	case *ONNXRegressor:
		return KindONNX
	case *MockRegressor:
		return "mock"
	default:
		return fmt.Sprintf("%T", r)
	}
}
