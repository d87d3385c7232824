// Package regression provides the per-component regressors of the emulator.
//
// Every regression technique satisfies the single-method Regressor capability,
// so a fitted Gaussian process, an ONNX-exported model or a test double are
// interchangeable inside an Ensemble.
package regression

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimension is returned when an input vector has the wrong length
	ErrDimension = errors.New("input dimension mismatch")

	// ErrNumerical is returned when a regressor produces a non-finite value
	ErrNumerical = errors.New("numerical failure")

	// ErrInvalidSpec is returned when a serialized regressor cannot be built
	ErrInvalidSpec = errors.New("invalid regressor spec")
)

// Regressor maps a normalized parameter vector to one scalar
type Regressor interface {
	Predict(x []float64) (float64, error)
}

// Func adapts an ordinary function to the Regressor interface
type Func func(x []float64) (float64, error)

// Predict implements Regressor
func (f Func) Predict(x []float64) (float64, error) {
	return f(x)
}

func checkFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: prediction is %v", ErrNumerical, v)
	}
	return nil
}
